package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/eringen/panelengine/database"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestProcess(t *testing.T) {
	img, data, err := Process(bytes.NewReader(pngBytes(t, 2000, 1000)), "My Photo.PNG", 800)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if img.Width != 800 || img.Height != 400 {
		t.Errorf("size = %dx%d, want 800x400", img.Width, img.Height)
	}
	if img.Filename != "my-photo.jpg" || img.OriginalName != "My Photo.PNG" {
		t.Errorf("names = %q / %q", img.Filename, img.OriginalName)
	}
	if img.Size != len(data) || !bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
		t.Errorf("output is not a JPEG of the reported size")
	}

	small, _, err := Process(bytes.NewReader(pngBytes(t, 300, 200)), "../../etc/???.png", 800)
	if err != nil {
		t.Fatalf("Process small: %v", err)
	}
	if small.Width != 300 || small.Filename != "image.jpg" {
		t.Errorf("small = %+v", small)
	}

	_, _, err = Process(strings.NewReader("not an image"), "x.txt", 800)
	if !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("Process(text) = %v, want ErrUnsupportedImage", err)
	}
}

func TestLibrary(t *testing.T) {
	dir := t.TempDir()
	db, err := database.Open(filepath.Join(dir, "media.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	lib, err := NewLibrary(db, filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatal(err)
	}
	lib.SetClock(func() time.Time { return time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC) })
	ctx := context.Background()

	first, err := lib.Save(ctx, bytes.NewReader(pngBytes(t, 1024, 512)), "Logo.png", KindLogo)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if first.Filename != "logo.jpg" || first.Width != 512 || first.Kind != KindLogo {
		t.Errorf("first = %+v", first)
	}
	second, err := lib.Save(ctx, bytes.NewReader(pngBytes(t, 64, 64)), "logo.gif", KindCover)
	if err != nil {
		t.Fatalf("Save second: %v", err)
	}
	if second.Filename != "logo-2.jpg" {
		t.Errorf("second filename = %q, want logo-2.jpg", second.Filename)
	}
	if second.URL() != "/uploads/logo-2.jpg" {
		t.Errorf("URL = %q", second.URL())
	}
	if _, err := os.Stat(filepath.Join(lib.Dir(), "logo-2.jpg")); err != nil {
		t.Errorf("file not written: %v", err)
	}

	if _, err := lib.Save(ctx, bytes.NewReader(nil), "x.png", "banner"); !errors.Is(err, ErrInvalidKind) {
		t.Errorf("Save bad kind = %v", err)
	}
	big := bytes.NewReader(make([]byte, MaxUploadSize+10))
	if _, err := lib.Save(ctx, big, "big.png", KindCover); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Save big = %v", err)
	}

	all, err := lib.List(ctx, "")
	if err != nil || len(all) != 2 {
		t.Fatalf("List all = %v, %v", all, err)
	}
	logos, _ := lib.List(ctx, KindLogo)
	if len(logos) != 1 || logos[0].Filename != "logo.jpg" {
		t.Errorf("List logos = %+v", logos)
	}

	if err := lib.Delete(ctx, "logo.jpg"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(lib.Dir(), "logo.jpg")); !os.IsNotExist(err) {
		t.Errorf("file still present: %v", err)
	}
	if err := lib.Delete(ctx, "logo.jpg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete twice = %v", err)
	}
	if err := lib.Delete(ctx, "../media.db"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete traversal = %v", err)
	}
}
