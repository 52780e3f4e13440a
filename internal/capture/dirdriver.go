package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
)

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".tif": true, ".tiff": true}

// DirDriver is a Driver backed by a directory of still images, so the daemon
// can run without camera hardware. Each subdirectory is a device (one whose
// name contains "front" is a front camera); image files directly under the
// root form a single "default" device. Each capture decodes the device's
// next image in name order, wrapping around.
type DirDriver struct {
	Root string

	dev     Device
	files   []string
	next    int
	running bool
}

// NewDirDriver returns a DirDriver reading from root.
func NewDirDriver(root string) *DirDriver { return &DirDriver{Root: root} }

func (d *DirDriver) Authorize(ctx context.Context) error {
	fi, err := os.Stat(d.Root)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", d.Root)
	}
	return nil
}

func (d *DirDriver) Devices(ctx context.Context) ([]Device, error) {
	entries, err := os.ReadDir(d.Root)
	if err != nil {
		return nil, err
	}
	var devs []Device
	loose := false
	for _, e := range entries {
		if e.IsDir() {
			pos := PositionBack
			if strings.Contains(strings.ToLower(e.Name()), "front") {
				pos = PositionFront
			}
			devs = append(devs, Device{ID: e.Name(), Name: e.Name(), Position: pos})
			continue
		}
		if imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			loose = true
		}
	}
	if loose {
		devs = append([]Device{{ID: "default", Name: "default", Position: PositionBack}}, devs...)
	}
	return devs, nil
}

func (d *DirDriver) Configure(ctx context.Context, dev Device) error {
	dir := d.Root
	if dev.ID != "default" {
		dir = filepath.Join(d.Root, dev.ID)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	d.dev = dev
	d.files = files
	d.next = 0
	return nil
}

func (d *DirDriver) Start(ctx context.Context) error {
	d.running = true
	return nil
}

func (d *DirDriver) Stop(ctx context.Context) error {
	d.running = false
	return nil
}

func (d *DirDriver) CapturePhoto(ctx context.Context) (image.Image, error) {
	if !d.running {
		return nil, errors.New("device not started")
	}
	if len(d.files) == 0 {
		return nil, fmt.Errorf("device %s has no images", d.dev.ID)
	}
	path := d.files[d.next%len(d.files)]
	d.next++
	return imaging.Open(path, imaging.AutoOrientation(true))
}
