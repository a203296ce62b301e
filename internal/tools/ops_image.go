// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package tools

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
)

const (
	maxImageDimension = 10000
	// maxSourcePixels bounds the decoded size of the input image.
	maxSourcePixels = 50_000_000
)

var errImageTooLarge = errors.New("image too large")

func compressOrResizeImage(ctx context.Context, env *Env, args Args) (string, error) {
	const name = "compress_or_resize_image"
	width, height, quality := args.Int("width"), args.Int("height"), args.Int("quality")
	if width < 1 || width > maxImageDimension {
		return "", ArgumentTypeError(name, "width", "must be between 1 and %d, got %d", maxImageDimension, width)
	}
	if height < 1 || height > maxImageDimension {
		return "", ArgumentTypeError(name, "height", "must be between 1 and %d, got %d", maxImageDimension, height)
	}
	if quality < 1 || quality > 100 {
		return "", ArgumentTypeError(name, "quality", "must be between 1 and 100, got %d", quality)
	}

	data, err := env.Guard.ReadFile(args.Path("input_file"), env.Limits.Normalize().MaxFileSizeBytes)
	if err != nil {
		return "", err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxSourcePixels {
		return "", fmt.Errorf("%w: %dx%d exceeds %d pixels", errImageTooLarge, cfg.Width, cfg.Height, maxSourcePixels)
	}
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	out := args.Path("output_file")
	f, err := env.Guard.Create(out)
	if err != nil {
		return "", err
	}
	w := bufio.NewWriter(f)

	switch strings.ToLower(filepath.Ext(out.String())) {
	case ".png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		err = enc.Encode(w, dst)
	case ".gif":
		err = gif.Encode(w, dst, nil)
	default:
		err = jpeg.Encode(w, dst, &jpeg.Options{Quality: quality})
	}
	if err == nil {
		err = w.Flush()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return wroteMessage(out, "resized %s image to %dx%d", format, width, height), nil
}
