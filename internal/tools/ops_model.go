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
	"context"
	"fmt"
	"sort"
	"strings"
)

func extractInfoWithLLM(ctx context.Context, env *Env, args Args) (string, error) {
	content, err := readText(env, args.Path("input_file"))
	if err != nil {
		return "", err
	}

	extracted, err := env.Model.Complete(ctx, fmt.Sprintf("%s\n\nText:\n%s", args.String("prompt_text"), content))
	if err != nil {
		return "", err
	}

	out := args.Path("output_file")
	if err := writeText(env, out, strings.TrimSpace(extracted)); err != nil {
		return "", err
	}
	return wroteMessage(out, "extracted %d characters", len(strings.TrimSpace(extracted))), nil
}

func extractTextFromImage(ctx context.Context, env *Env, args Args) (string, error) {
	img := args.Path("image_path")
	raw, err := env.Runner.Run(ctx, img.Dir().String(), "tesseract", img.Base(), "stdout")
	if err != nil {
		return "", fmt.Errorf("ocr failed: %w", err)
	}
	recognized := strings.TrimSpace(strings.ReplaceAll(string(raw), " ", ""))

	refined, err := env.Model.Complete(ctx, fmt.Sprintf("%s\n\nText:\n%s", args.String("prompt_text"), recognized))
	if err != nil {
		return "", err
	}

	out := args.Path("output_file")
	if err := writeText(env, out, strings.TrimSpace(refined)); err != nil {
		return "", err
	}
	return wroteMessage(out, "recognized %d characters", len(recognized)), nil
}

func findMostSimilarPair(ctx context.Context, env *Env, args Args) (string, error) {
	content, err := readText(env, args.Path("input_file"))
	if err != nil {
		return "", err
	}
	var lines []string
	for _, line := range splitLines(content) {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	out := args.Path("output_file")
	if len(lines) < 2 {
		if err := writeText(env, out, ""); err != nil {
			return "", err
		}
		return wroteMessage(out, "fewer than two entries"), nil
	}

	vectors, err := env.Model.Embed(ctx, lines)
	if err != nil {
		return "", err
	}
	if len(vectors) != len(lines) {
		return "", fmt.Errorf("expected %d embeddings, got %d", len(lines), len(vectors))
	}

	i, j := mostSimilar(vectors)
	pair := []string{lines[i], lines[j]}
	sort.Strings(pair)

	if err := writeText(env, out, strings.Join(pair, "\n")+"\n"); err != nil {
		return "", err
	}
	return wroteMessage(out, "compared %d entries", len(lines)), nil
}

// mostSimilar returns the indices of the distinct pair with the highest dot
// product. The first maximum wins.
func mostSimilar(vectors [][]float32) (int, int) {
	bestI, bestJ := 0, 1
	best := dot(vectors[0], vectors[1])
	for i := 0; i < len(vectors); i++ {
		for j := i + 1; j < len(vectors); j++ {
			if sim := dot(vectors[i], vectors[j]); sim > best {
				best, bestI, bestJ = sim, i, j
			}
		}
	}
	return bestI, bestJ
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for k := 0; k < n; k++ {
		sum += float64(a[k]) * float64(b[k])
	}
	return sum
}

func transcribeAudio(ctx context.Context, env *Env, args Args) (string, error) {
	in := args.Path("input_file")
	f, err := env.Guard.Open(in)
	if err != nil {
		return "", err
	}
	defer f.Close()

	text, err := env.Model.Transcribe(ctx, in.Base(), f)
	if err != nil {
		return "", err
	}

	out := args.Path("output_file")
	if err := writeText(env, out, strings.TrimSpace(text)); err != nil {
		return "", err
	}
	return wroteMessage(out, "transcribed %s", in.Base()), nil
}
