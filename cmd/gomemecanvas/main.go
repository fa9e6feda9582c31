/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gomemecanvas/internal/config"
	"gomemecanvas/internal/crash"
	applog "gomemecanvas/internal/log"
	"gomemecanvas/internal/telemetry"
	"gomemecanvas/internal/version"
)

func usage() {
	fmt.Println("GoMemeCanvas: caption images, keep a feed of memes")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  gomemecanvas version|-v|--version                    Show version")
	fmt.Println("  gomemecanvas render <image> <boxes.json> <out.png> [--stage WxH] [--template ID]")
	fmt.Println("                                                       Draw text boxes over an image")
	fmt.Println("  gomemecanvas import <record.json>                    Validate and store a meme record")
	fmt.Println("  gomemecanvas export <id> <out.json>                  Write a stored meme as a record file")
	fmt.Println("  gomemecanvas show <id> <out.png> [--preset P] [--rerender]")
	fmt.Println("                                                       Write a stored meme as PNG")
	fmt.Println("  gomemecanvas list [newest|oldest|upvotes] [--user U] [--limit N]")
	fmt.Println("  gomemecanvas search <text> [--limit N]               Search captions")
	fmt.Println("  gomemecanvas upvote <id> <user>                      Toggle a user's upvote")
	fmt.Println("  gomemecanvas delete <id>                             Delete a stored meme")
	fmt.Println("  gomemecanvas batch-export <dir> [--preset P] [--records] [--rerender] [--sort S] [--user U]")
	fmt.Println("  gomemecanvas serve [--addr A]                        Run the HTTP API")
	fmt.Println("  gomemecanvas ui [image] [--open ID] [--user U]       Launch desktop editor (build with -tags fyne)")
	fmt.Println("  gomemecanvas templates list|install <zip>|export <zip>  Manage the template gallery")
	fmt.Println("  gomemecanvas config path|password <pw>               Show config path or keep the store password in the keyring")
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, password, cfgErr := config.Load()
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config not loaded; using defaults", slog.Any("err", cfgErr))
	}
	telemetry.NewDefault(telemetry.FromEnv().WithOverrides(cfg.General.TelemetryOptIn, cfg.General.TelemetryEndpoint))
	defer telemetry.Default().Close()
	defer crash.Recover(crash.Options{})

	l.Debug("start", slog.Int("args", len(args)))
	if len(args) == 0 {
		usage()
		return 0
	}
	app := &cliApp{cfg: cfg, password: password, log: l}
	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "version", "--version", "-v":
		fmt.Println("GoMemeCanvas")
		fmt.Println(version.String())
		return 0
	case "help", "-h", "--help":
		usage()
		return 0
	case "render":
		err = app.render(rest)
	case "import":
		err = app.importRecord(rest)
	case "export":
		err = app.exportRecord(rest)
	case "show":
		err = app.show(rest)
	case "list":
		err = app.list(rest)
	case "search":
		err = app.search(rest)
	case "upvote":
		err = app.upvote(rest)
	case "delete":
		err = app.delete(rest)
	case "batch-export":
		err = app.batchExport(rest)
	case "serve":
		err = app.serve(rest)
	case "ui":
		err = app.ui(rest)
	case "templates":
		err = app.templates(rest)
	case "config":
		err = app.config(rest)
	default:
		fmt.Printf("unknown command %q\n", cmd)
		usage()
		return 2
	}
	if err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Println(ue.Error())
			usage()
			return 2
		}
		l.Error(cmd+" failed", slog.Any("err", err))
		fmt.Println("Error:", err)
		return 1
	}
	return 0
}
