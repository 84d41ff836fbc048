//go:build !gosseract

// This is the default implementation
package tesswrap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

func init() {
	_, err := exec.LookPath("tesseract")
	if err != nil {
		Initialized = false
		return
	}
	LangsAvailable = listLangs()
	Version = tesseractVersion()
}

func listLangs() []string {
	cmd := exec.Command("tesseract", "--list-langs")
	output, err := cmd.Output()
	if err != nil {
		return []string{}
	}
	outputLines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(outputLines) < 2 {
		return []string{}
	}
	// first line is a heading
	langs := make([]string, 0, len(outputLines)-1)
	for _, line := range outputLines[1:] {
		if line = strings.TrimSpace(line); line != "" {
			langs = append(langs, line)
		}
	}
	return langs
}

func tesseractVersion() string {
	output, err := exec.Command("tesseract", "--version").Output()
	if err != nil {
		return ""
	}
	first, _, _ := strings.Cut(string(output), "\n")
	return strings.TrimPrefix(strings.TrimSpace(first), "tesseract ")
}

func recognize(ctx context.Context, img []byte, langs string) (string, error) {
	cmd := exec.CommandContext(ctx, "tesseract", "-l", langs, "-", "-")
	cmd.Stdin = bytes.NewReader(img)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	result, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return "", err
	}
	return string(result), nil
}
