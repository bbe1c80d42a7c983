package main

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
)

func createTestImage(width, height int, seed int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x*255)/width + seed)
			g := uint8((y * 255) / height)
			b := uint8((x + y + seed) % 255)
			img.Set(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}

	return img
}

func main() {
	// Build a sample inbox with date-bearing filenames for manual sort runs.
	// No EXIF is written, so resolution falls back to the filename dates.
	files := []struct {
		path string
		seed int
	}{
		{"inbox/IMG_20240315_143022.jpg", 0},
		{"inbox/signal_2024-03-15_beach.jpg", 1},
		{"inbox/holiday/IMG_20230715_090000.jpg", 2},
		{"inbox/holiday/IMG_20230716_020500.jpg", 3}, // early morning, day_begins case
		{"inbox/telegram_19-07-01_party.JPG", 4},     // 2-digit year, case test
		{"inbox/no_date_here.jpg", 5},
	}

	for _, f := range files {
		if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
			fmt.Printf("Error creating directory for %s: %v\n", f.path, err)
			continue
		}

		file, err := os.Create(f.path)
		if err != nil {
			fmt.Printf("Error creating %s: %v\n", f.path, err)
			continue
		}

		img := createTestImage(400, 300, f.seed)
		options := &jpeg.Options{Quality: 85}
		if err := jpeg.Encode(file, img, options); err != nil {
			fmt.Printf("Error encoding %s: %v\n", f.path, err)
		} else {
			fmt.Printf("Created sample file: %s\n", f.path)
		}
		file.Close()
	}

	// Two distinct files that sort to the same destination name exercise
	// the conflict suffixing path.
	conflict := "inbox/duplicates/IMG_20240315_143022.jpg"
	if err := os.MkdirAll(filepath.Dir(conflict), 0755); err == nil {
		if file, err := os.Create(conflict); err == nil {
			jpeg.Encode(file, createTestImage(400, 300, 9), &jpeg.Options{Quality: 85})
			file.Close()
			fmt.Printf("Created conflicting file: %s\n", conflict)
		}
	}

	fmt.Println("\nSample inbox created. Try: curator sort inbox library --dry-run")
}
