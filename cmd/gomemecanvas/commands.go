/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"gomemecanvas/internal/config"
	"gomemecanvas/internal/domain"
	"gomemecanvas/internal/editor"
	"gomemecanvas/internal/export"
	"gomemecanvas/internal/render"
	"gomemecanvas/internal/server"
	"gomemecanvas/internal/storage"
	"gomemecanvas/internal/telemetry"
	"gomemecanvas/internal/templates"
	"gomemecanvas/internal/ui"
)

const cmdTimeout = 30 * time.Second

func (a *cliApp) render(args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	stageFlag := fs.String("stage", "", "overlay size the box ratios were committed against, WxH")
	tmpl := fs.String("template", "", "gallery template to use instead of <image>")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if *tmpl != "" {
		pos = append([]string{""}, pos...)
	}
	if len(pos) != 3 {
		return usageError("render requires <image> <boxes.json> <out.png> or --template ID <boxes.json> <out.png>")
	}
	boxes, stage, err := readBoxes(pos[1])
	if err != nil {
		return err
	}
	if *stageFlag != "" {
		if stage, err = parseStage(*stageFlag); err != nil {
			return usageError(err.Error())
		}
	}
	r, err := a.rasterizer()
	if err != nil {
		return err
	}
	start := time.Now()
	sess := editor.NewSession(r, a.limits())
	if *tmpl != "" {
		img, err := a.gallery().Load(*tmpl)
		if err != nil {
			return err
		}
		sess.LoadImage(img, editor.ClearBoxes)
	} else if err := sess.LoadImageFile(pos[0], editor.ClearBoxes); err != nil {
		return err
	}
	sess.Rehydrate(sess.Image(), boxes)
	if !stage.Valid() {
		stage = sess.DisplayStage(a.displayMax(), a.displayMax())
	}
	sess.Controller().SetStage(stage.W, stage.H)

	f, err := os.Create(pos[2])
	if err != nil {
		return err
	}
	if err := sess.ExportPNG(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	b := sess.Image().Bounds()
	snap := sess.Snapshot()
	telemetry.MemeRendered(telemetry.RenderStats{
		Source: "cli", Boxes: len(snap), Visible: len(render.Visible(snap)),
		Width: b.Dx(), Height: b.Dy(), Duration: time.Since(start),
	})
	fmt.Printf("Rendered %d box(es) onto %dx%d image: %s\n", len(snap), b.Dx(), b.Dy(), pos[2])
	return nil
}

// withStore opens the store for one command.
func (a *cliApp) withStore(fn func(ctx context.Context, st storage.Store) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	defer cancel()
	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(ctx, st)
}

func (a *cliApp) importRecord(args []string) error {
	if len(args) != 1 {
		return usageError("import requires <record.json>")
	}
	m, err := storage.ReadRecord(args[0])
	if err != nil {
		return err
	}
	return a.withStore(func(ctx context.Context, st storage.Store) error {
		_, getErr := st.Get(ctx, m.ID)
		if err := st.Save(ctx, m); err != nil {
			return err
		}
		telemetry.MemeSaved(driverName(a.cfg.Store.Driver), len(m.TextBoxes), getErr == nil)
		fmt.Println("Imported", m.ID)
		return nil
	})
}

func (a *cliApp) exportRecord(args []string) error {
	if len(args) != 2 {
		return usageError("export requires <id> <out.json>")
	}
	return a.withStore(func(ctx context.Context, st storage.Store) error {
		m, err := st.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if err := storage.WriteRecord(args[1], *m); err != nil {
			return err
		}
		fmt.Println("Exported to", args[1])
		return nil
	})
}

func (a *cliApp) show(args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	preset := fs.String("preset", "original", "original, web or thumb")
	rerender := fs.Bool("rerender", false, "draw the boxes again over the kept base image")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 2 {
		return usageError("show requires <id> <out.png>")
	}
	p, err := export.ParsePreset(*preset)
	if err != nil {
		return usageError(err.Error())
	}
	r, err := a.rasterizer()
	if err != nil {
		return err
	}
	return a.withStore(func(ctx context.Context, st storage.Store) error {
		m, err := st.Get(ctx, pos[0])
		if err != nil {
			return err
		}
		if err := export.ExportMemePNG(m, pos[1], r, export.PNGOptions{Preset: p, Rerender: *rerender}); err != nil {
			return err
		}
		fmt.Println("Wrote", pos[1])
		return nil
	})
}

func (a *cliApp) list(args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	user := fs.String("user", "", "only memes owned by this user")
	limit := fs.Int("limit", storage.DefaultListLimit, "maximum rows")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	opt := storage.ListOptions{UserID: *user, Limit: *limit}
	if len(pos) > 0 {
		opt.Sort = pos[0]
	}
	switch opt.Sort {
	case "", storage.SortNewest, storage.SortOldest, storage.SortUpvotes:
	default:
		return usageError(fmt.Sprintf("unknown sort %q", opt.Sort))
	}
	return a.withStore(func(ctx context.Context, st storage.Store) error {
		memes, err := st.List(ctx, opt)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tUSER\tUPVOTES\tCREATED\tCAPTION")
		for _, m := range memes {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", m.ID, m.UserID, m.Upvotes,
				time.UnixMilli(m.CreatedAt).Format("2006-01-02 15:04"), caption(m.TextBoxes))
		}
		return tw.Flush()
	})
}

func (a *cliApp) search(args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "maximum results")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) == 0 {
		return usageError("search requires <text>")
	}
	q := strings.Join(pos, " ")
	return a.withStore(func(ctx context.Context, st storage.Store) error {
		hits, err := st.Search(ctx, q, *limit)
		if err != nil {
			return err
		}
		if len(hits) == 0 {
			fmt.Println("No matches.")
			return nil
		}
		for _, h := range hits {
			fmt.Printf("%s  %s\n", h.MemeID, h.Snippet)
		}
		return nil
	})
}

func (a *cliApp) upvote(args []string) error {
	if len(args) != 2 {
		return usageError("upvote requires <id> <user>")
	}
	return a.withStore(func(ctx context.Context, st storage.Store) error {
		on, n, err := st.ToggleUpvote(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		telemetry.MemeUpvoted(on)
		state := "removed"
		if on {
			state = "added"
		}
		fmt.Printf("Upvote %s; %s now has %d\n", state, args[0], n)
		return nil
	})
}

func (a *cliApp) delete(args []string) error {
	if len(args) != 1 {
		return usageError("delete requires <id>")
	}
	return a.withStore(func(ctx context.Context, st storage.Store) error {
		if err := st.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("Deleted", args[0])
		return nil
	})
}

func (a *cliApp) batchExport(args []string) error {
	fs := flag.NewFlagSet("batch-export", flag.ContinueOnError)
	preset := fs.String("preset", "original", "original, web or thumb")
	records := fs.Bool("records", false, "write <id>.json beside each PNG")
	rerender := fs.Bool("rerender", false, "draw the boxes again over the kept base image")
	sortBy := fs.String("sort", storage.SortNewest, "newest, oldest or upvotes")
	user := fs.String("user", "", "only memes owned by this user")
	limit := fs.Int("limit", 1000, "maximum memes")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return usageError("batch-export requires <dir>")
	}
	p, err := export.ParsePreset(*preset)
	if err != nil {
		return usageError(err.Error())
	}
	r, err := a.rasterizer()
	if err != nil {
		return err
	}
	return a.withStore(func(ctx context.Context, st storage.Store) error {
		n, err := export.BatchExport(ctx, st, r, export.BatchOptions{
			Preset:   p,
			OutDir:   pos[0],
			List:     storage.ListOptions{Sort: *sortBy, UserID: *user, Limit: *limit},
			Records:  *records,
			Rerender: *rerender,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d meme(s) to %s\n", n, pos[0])
		return nil
	})
}

// EnvAuthSecret signs bearer tokens issued by serve.
const EnvAuthSecret = "GMC_AUTH_SECRET"

func (a *cliApp) serve(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", a.cfg.Server.Addr, "listen address")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	r, err := a.rasterizer()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	octx, cancel := context.WithTimeout(ctx, cmdTimeout)
	st, err := a.openStore(octx)
	cancel()
	if err != nil {
		return err
	}
	defer st.Close()
	srv := server.New(st, r, server.Options{
		Addr:           *addr,
		AuthSecret:     os.Getenv(EnvAuthSecret),
		MaxUploadBytes: a.cfg.Server.MaxUploadBytes,
		Limits:         a.limits(),
		DisplayMax:     a.displayMax(),
		Driver:         driverName(a.cfg.Store.Driver),
		Telemetry:      telemetry.Default(),
		Templates:      a.gallery(),
	})
	fmt.Println("Serving on", *addr)
	return srv.ListenAndServe(ctx)
}

func (a *cliApp) ui(args []string) error {
	fs := flag.NewFlagSet("ui", flag.ContinueOnError)
	openID := fs.String("open", "", "stored meme to open")
	user := fs.String("user", os.Getenv("USER"), "owner of saved memes")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	r, err := a.rasterizer()
	if err != nil {
		return err
	}
	opt := ui.Options{
		OpenID:     *openID,
		UserID:     *user,
		Raster:     r,
		Limits:     a.limits(),
		DisplayMax: a.displayMax(),
		Driver:     driverName(a.cfg.Store.Driver),
		Templates:  a.gallery(),
		CrashDir:   filepath.Join(filepath.Dir(a.cfg.Store.Path), "crash"),
	}
	if len(pos) > 0 {
		opt.ImagePath = pos[0]
	}
	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	st, err := a.openStore(ctx)
	cancel()
	if err != nil {
		a.log.Warn("store unavailable; editor runs without a feed", slog.Any("err", err))
	} else {
		defer st.Close()
		opt.Store = st
	}
	return ui.Run(opt)
}

func (a *cliApp) config(args []string) error {
	if len(args) == 0 {
		return usageError("config requires path or password <pw>")
	}
	switch args[0] {
	case "path":
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(p)
		return nil
	case "password":
		if len(args) != 2 {
			return usageError("config password requires <pw>")
		}
		if err := config.Save(a.cfg, args[1]); err != nil {
			return err
		}
		fmt.Println("Store password saved to the OS keyring")
		return nil
	default:
		return usageError(fmt.Sprintf("unknown config command %q", args[0]))
	}
}

func (a *cliApp) templates(args []string) error {
	g := a.gallery()
	if len(args) == 0 {
		return usageError("templates requires list, install <zip> or export <zip>")
	}
	switch args[0] {
	case "list":
		list, err := g.List()
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No templates in", g.Dir)
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tFILE")
		for _, t := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", t.ID, t.Name, filepath.Base(t.Path))
		}
		return tw.Flush()
	case "install":
		if len(args) != 2 {
			return usageError("templates install requires <pack.zip>")
		}
		n, err := templates.InstallPack(g.Dir, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Installed %d template(s) into %s\n", n, g.Dir)
		return nil
	case "export":
		if len(args) != 2 {
			return usageError("templates export requires <pack.zip>")
		}
		n, err := templates.ExportPack(g.Dir, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d template(s) to %s\n", n, args[1])
		return nil
	default:
		return usageError(fmt.Sprintf("unknown templates command %q", args[0]))
	}
}

func caption(boxes []domain.TextBox) string {
	var parts []string
	for _, b := range boxes {
		if !b.Blank() {
			parts = append(parts, strings.ReplaceAll(strings.TrimSpace(b.Text), "\n", " "))
		}
	}
	s := strings.Join(parts, " / ")
	if r := []rune(s); len(r) > 48 {
		s = string(r[:47]) + "…"
	}
	return s
}
