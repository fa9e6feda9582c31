//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */
package ui

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"github.com/google/uuid"

	"gomemecanvas/internal/crash"
	"gomemecanvas/internal/domain"
	"gomemecanvas/internal/editor"
	"gomemecanvas/internal/geom"
	applog "gomemecanvas/internal/log"
	"gomemecanvas/internal/render"
	"gomemecanvas/internal/storage"
	"gomemecanvas/internal/telemetry"
	"gomemecanvas/internal/version"
)

// Run starts the Fyne editor window and blocks until it closes.
func Run(opt Options) error {
	l := applog.WithComponent("ui")
	l.Info("starting UI")
	if opt.DisplayMax <= 0 {
		opt.DisplayMax = geom.DisplayMax
	}

	sess := editor.NewSession(opt.Raster, opt.Limits)
	ctrl := sess.Controller()
	defer crash.Recover(crash.Options{Dir: opt.CrashDir, Source: sess})

	fyneApp := app.NewWithID("gomemecanvas")
	w := fyneApp.NewWindow("GoMemeCanvas")
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1000)
	winH := prefs.IntWithFallback("window.height", 760)
	if winW < 700 {
		winW = 700
	}
	if winH < 560 {
		winH = 560
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("Open an image to start")
	mc := NewMemeCanvas(sess, opt.DisplayMax)
	sess.OnRender(mc.SetBitmap)

	// currentID is the stored record being edited; empty means save creates a new one.
	currentID := ""

	textEntry := widget.NewMultiLineEntry()
	textEntry.SetPlaceHolder("Select or create a text box")
	textEntry.Wrapping = fyne.TextWrapWord
	textEntry.Disable()
	syncing := false
	shownID := ""
	syncEntry := func() {
		id := ctrl.Active()
		if id == shownID {
			return
		}
		shownID = id
		syncing = true
		defer func() { syncing = false }()
		b, ok := sess.Registry().Get(id)
		if !ok {
			textEntry.SetText("")
			textEntry.Disable()
			return
		}
		textEntry.Enable()
		textEntry.SetText(b.Text)
	}
	textEntry.OnChanged = func(s string) {
		if syncing || shownID == "" {
			return
		}
		ctrl.EditText(shownID, s)
	}
	mc.OnActiveChanged = syncEntry

	fitStage := func() {
		st := sess.DisplayStage(opt.DisplayMax, opt.DisplayMax)
		ctrl.SetStage(st.W, st.H)
		mc.Refresh()
		syncEntry()
	}

	loadFile := func(path string, mode editor.LoadMode) {
		if err := sess.LoadImageFile(path, mode); err != nil {
			dialog.ShowError(fmt.Errorf("load image: %w", err), w)
			status.SetText("Could not load " + path)
			return
		}
		if mode == editor.ClearBoxes {
			currentID = ""
		}
		fitStage()
		status.SetText("Loaded " + path)
	}

	openImage := func() {
		open := dialog.NewFileOpen(func(ur fyne.URIReadCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if ur == nil {
				return
			}
			path := ur.URI().Path()
			_ = ur.Close()
			if sess.Registry().Len() == 0 {
				loadFile(path, editor.ClearBoxes)
				return
			}
			dialog.ShowConfirm("Open Image", "Keep the current text boxes on the new image?", func(keep bool) {
				mode := editor.ClearBoxes
				if keep {
					mode = editor.KeepBoxes
				}
				loadFile(path, mode)
			}, w)
		}, w)
		open.SetFilter(fstorage.NewExtensionFileFilter([]string{".png", ".jpg", ".jpeg", ".gif"}))
		open.Show()
	}

	exportPNG := func() {
		if sess.Image() == nil {
			dialog.ShowInformation("Export PNG", "No image loaded.", w)
			return
		}
		save := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if uc == nil {
				return
			}
			start := time.Now()
			err = sess.ExportPNG(uc)
			_ = uc.Close()
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			b := sess.Image().Bounds()
			boxes := sess.Snapshot()
			telemetry.MemeRendered(telemetry.RenderStats{
				Source: "ui", Boxes: len(boxes), Visible: len(render.Visible(boxes)),
				Width: b.Dx(), Height: b.Dy(), Duration: time.Since(start),
			})
			status.SetText("Exported " + uc.URI().Path())
		}, w)
		save.SetFileName("meme.png")
		save.SetFilter(fstorage.NewExtensionFileFilter([]string{".png"}))
		save.Show()
	}

	saveToStore := func() {
		if opt.Store == nil {
			dialog.ShowInformation("Save", "No meme store configured.", w)
			return
		}
		if sess.Image() == nil {
			dialog.ShowInformation("Save", "No image loaded.", w)
			return
		}
		edit := currentID != ""
		id := currentID
		if !edit {
			id = uuid.NewString()
		}
		rec, err := sess.Record(id, opt.UserID)
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := opt.Store.Save(ctx, rec); err != nil {
			l.Error("save failed", slog.String("id", id), slog.Any("err", err))
			dialog.ShowError(err, w)
			return
		}
		currentID = id
		telemetry.MemeSaved(opt.Driver, len(rec.TextBoxes), edit)
		status.SetText("Saved " + id)
	}

	openRecord := func(m *domain.Meme) {
		if err := sess.OpenRecord(m); err != nil {
			dialog.ShowError(fmt.Errorf("open meme: %w", err), w)
			return
		}
		// Someone else's meme is saved as a new copy.
		currentID = ""
		if m.UserID == opt.UserID {
			currentID = m.ID
		}
		mc.Refresh()
		syncEntry()
		status.SetText("Opened " + m.ID)
	}

	deleteBox := widget.NewButton("Delete Box", func() {
		if id := ctrl.Active(); id != "" {
			ctrl.Delete(id)
			mc.Refresh()
			syncEntry()
		}
	})
	clearBoxes := widget.NewButton("Clear All", func() {
		ctrl.ClearAll()
		mc.Refresh()
		syncEntry()
	})

	fromTemplate := func() {
		list, err := opt.Templates.List()
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		if len(list) == 0 {
			dialog.ShowInformation("Templates", "Add images to "+opt.Templates.Dir+" to see templates here.", w)
			return
		}
		names := make([]string, len(list))
		for i, t := range list {
			names[i] = t.Name
		}
		pick := widget.NewSelect(names, nil)
		pick.SetSelectedIndex(0)
		dialog.ShowCustomConfirm("Choose a Template", "Use", "Cancel", pick, func(ok bool) {
			if !ok || pick.SelectedIndex() < 0 {
				return
			}
			loadFile(list[pick.SelectedIndex()].Path, editor.ClearBoxes)
		}, w)
	}

	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("New from Template…", fromTemplate),
		fyne.NewMenuItem("Open Image…", openImage),
		fyne.NewMenuItem("Export PNG…", exportPNG),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Save to Feed", saveToStore),
		fyne.NewMenuItem("Browse Feed…", func() { showFeed(fyneApp, opt, openRecord, l) }),
	)
	aboutMenu := fyne.NewMenu("About", fyne.NewMenuItem("Version", func() {
		dialog.ShowInformation("GoMemeCanvas", version.String(), w)
	}))
	w.SetMainMenu(fyne.NewMainMenu(fileMenu, aboutMenu))

	side := container.NewBorder(widget.NewLabel("Text"), container.NewVBox(deleteBox, clearBoxes), nil, nil, textEntry)
	split := container.NewHSplit(mc, side)
	split.Offset = 0.72
	w.SetContent(container.NewBorder(nil, status, nil, nil, split))

	w.SetCloseIntercept(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		w.Close()
	})

	switch {
	case opt.ImagePath != "":
		loadFile(opt.ImagePath, editor.ClearBoxes)
	case opt.OpenID != "" && opt.Store != nil:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		m, err := opt.Store.Get(ctx, opt.OpenID)
		cancel()
		if err != nil {
			l.Error("open meme failed", slog.String("id", opt.OpenID), slog.Any("err", err))
		} else {
			openRecord(m)
		}
	}

	w.ShowAndRun()
	return nil
}

// showFeed lists stored memes with sorting, upvotes and open-for-edit.
func showFeed(a fyne.App, opt Options, open func(*domain.Meme), l *slog.Logger) {
	fw := a.NewWindow("Feed")
	fw.Resize(fyne.NewSize(520, 600))
	if opt.Store == nil {
		fw.SetContent(widget.NewLabel("No meme store configured."))
		fw.Show()
		return
	}
	var memes []domain.Meme
	selected := -1
	list := widget.NewList(
		func() int { return len(memes) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			m := memes[i]
			when := time.UnixMilli(m.CreatedAt).Format("2006-01-02 15:04")
			o.(*widget.Label).SetText(fmt.Sprintf("▲%d  %s  %s  %s", m.Upvotes, when, m.UserID, firstCaption(m)))
		},
	)
	list.OnSelected = func(id widget.ListItemID) { selected = id }
	sortSel := widget.NewSelect([]string{storage.SortNewest, storage.SortUpvotes, storage.SortOldest}, nil)
	reload := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		res, err := opt.Store.List(ctx, storage.ListOptions{Sort: sortSel.Selected})
		if err != nil {
			l.Error("list memes failed", slog.Any("err", err))
			dialog.ShowError(err, fw)
			return
		}
		memes = res
		selected = -1
		list.UnselectAll()
		list.Refresh()
	}
	sortSel.OnChanged = func(string) { reload() }
	upvote := widget.NewButton("Upvote", func() {
		if selected < 0 || selected >= len(memes) {
			return
		}
		if opt.UserID == "" {
			dialog.ShowInformation("Upvote", "Set a user name to upvote.", fw)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		on, n, err := opt.Store.ToggleUpvote(ctx, memes[selected].ID, opt.UserID)
		if err != nil {
			dialog.ShowError(err, fw)
			return
		}
		telemetry.MemeUpvoted(on)
		memes[selected].Upvotes = n
		list.Refresh()
	})
	edit := widget.NewButton("Open in Editor", func() {
		if selected < 0 || selected >= len(memes) {
			return
		}
		m := memes[selected]
		open(&m)
	})
	fw.SetContent(container.NewBorder(sortSel, container.NewHBox(upvote, edit), nil, nil, list))
	sortSel.SetSelected(storage.SortNewest)
	fw.Show()
}

func firstCaption(m domain.Meme) string {
	for _, b := range m.TextBoxes {
		if !b.Blank() {
			return b.Text
		}
	}
	return "(no text)"
}

// MemeCanvas shows the session's rendered bitmap at stage size with the
// editing overlay on top, and feeds pointer input to the controller.
type MemeCanvas struct {
	widget.BaseWidget
	sess       *editor.Session
	img        *canvas.Image
	displayMax float32

	OnActiveChanged func()
}

var (
	_ desktop.Mouseable = (*MemeCanvas)(nil)
	_ fyne.Draggable    = (*MemeCanvas)(nil)
)

func NewMemeCanvas(sess *editor.Session, displayMax float64) *MemeCanvas {
	img := canvas.NewImageFromImage(nil)
	img.FillMode = canvas.ImageFillStretch
	img.ScaleMode = canvas.ImageScaleSmooth
	mc := &MemeCanvas{sess: sess, img: img, displayMax: float32(displayMax)}
	mc.ExtendBaseWidget(mc)
	return mc
}

// SetBitmap swaps in a freshly rendered composition.
func (m *MemeCanvas) SetBitmap(rgba *image.RGBA) {
	if rgba == nil {
		m.img.Image = nil
	} else {
		m.img.Image = rgba
	}
	m.img.Refresh()
	m.Refresh()
}

func (m *MemeCanvas) view() geom.Size {
	s := m.Size()
	return geom.Size{W: float64(s.Width), H: float64(s.Height)}
}

func (m *MemeCanvas) stagePt(p fyne.Position) geom.Pt {
	return ToStage(geom.Pt{X: float64(p.X), Y: float64(p.Y)}, m.view(), m.sess.Controller().Stage())
}

func (m *MemeCanvas) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	m.sess.Controller().PointerDown(m.stagePt(e.Position))
	m.Refresh()
	if m.OnActiveChanged != nil {
		m.OnActiveChanged()
	}
}

func (m *MemeCanvas) MouseUp(_ *desktop.MouseEvent) {
	m.sess.Controller().PointerUp()
	m.Refresh()
}

func (m *MemeCanvas) Dragged(e *fyne.DragEvent) {
	if m.sess.Controller().PointerMove(m.stagePt(e.Position)) {
		m.Refresh()
	}
}

func (m *MemeCanvas) DragEnd() {
	m.sess.Controller().PointerUp()
	m.Refresh()
}

func (m *MemeCanvas) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 30, G: 30, B: 34, A: 255})
	r := &memeCanvasRenderer{mc: m, bg: bg}
	r.Refresh()
	return r
}

type memeCanvasRenderer struct {
	mc      *MemeCanvas
	bg      *canvas.Rectangle
	pool    []*canvas.Rectangle
	objects []fyne.CanvasObject
}

var (
	frameColor  = color.RGBA{R: 255, G: 255, B: 255, A: 140}
	activeColor = color.RGBA{R: 0, G: 170, B: 255, A: 255}
	chromeFill  = color.RGBA{R: 0, G: 170, B: 255, A: 70}
	transparent = color.RGBA{}
)

func (r *memeCanvasRenderer) Destroy()                     {}
func (r *memeCanvasRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *memeCanvasRenderer) MinSize() fyne.Size {
	return fyne.NewSize(r.mc.displayMax, r.mc.displayMax)
}
func (r *memeCanvasRenderer) Refresh() { r.Layout(r.mc.Size()); canvas.Refresh(r.mc) }

func (r *memeCanvasRenderer) rect(i int) *canvas.Rectangle {
	for len(r.pool) <= i {
		r.pool = append(r.pool, canvas.NewRectangle(transparent))
	}
	return r.pool[i]
}

func (r *memeCanvasRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.bg.Move(fyne.NewPos(0, 0))
	r.objects = append(r.objects[:0], r.bg)

	ctrl := r.mc.sess.Controller()
	stage := ctrl.Stage()
	if !stage.Valid() || r.mc.img.Image == nil {
		return
	}
	o := StageOrigin(geom.Size{W: float64(size.Width), H: float64(size.Height)}, stage)
	r.mc.img.Resize(fyne.NewSize(float32(stage.W), float32(stage.H)))
	r.mc.img.Move(fyne.NewPos(float32(o.X), float32(o.Y)))
	r.objects = append(r.objects, r.mc.img)

	for i, s := range OverlayShapes(ctrl) {
		rc := r.rect(i)
		rc.FillColor = transparent
		rc.StrokeWidth = 1
		rc.StrokeColor = frameColor
		switch s.Kind {
		case ShapeFrame:
			if s.Active {
				rc.StrokeColor = activeColor
				rc.StrokeWidth = 2
			}
		case ShapeChrome:
			rc.FillColor = chromeFill
			rc.StrokeColor = activeColor
		case ShapeHandle:
			rc.FillColor = color.White
			rc.StrokeColor = activeColor
		}
		rc.Move(fyne.NewPos(float32(o.X+s.Rect.X), float32(o.Y+s.Rect.Y)))
		rc.Resize(fyne.NewSize(float32(s.Rect.W), float32(s.Rect.H)))
		rc.Refresh()
		r.objects = append(r.objects, rc)
	}
}
