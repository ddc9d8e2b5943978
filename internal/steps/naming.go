package steps

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/briantruongvn/ngocson-tss-converter/internal/config"
)

// stepSuffixRe matches the " - Step<n>" marker intermediate outputs
// carry, so reruns on an intermediate file do not stack suffixes.
var stepSuffixRe = regexp.MustCompile(regexp.QuoteMeta(config.StepOutputSuffix) + `\d+$`)

// CleanBase reduces a workbook path to its original base name: the
// extension, any intermediate step suffix, and the standard output
// prefix are stripped.
func CleanBase(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	base = stepSuffixRe.ReplaceAllString(base, "")
	base = strings.TrimPrefix(base, config.FinalOutputPrefix)
	return strings.TrimSpace(base)
}

// StepOutputPath derives the conventional output path for stage n from
// the stage input. An empty dir places the output next to the input.
func StepOutputPath(dir, inputPath string, n int) string {
	if dir == "" {
		dir = filepath.Dir(inputPath)
	}
	name := fmt.Sprintf("%s%s%d%s", CleanBase(inputPath), config.StepOutputSuffix, n, config.ExcelExtension)
	return filepath.Join(dir, name)
}

// FinalOutputPath derives the deliverable path written by the last
// stage. An empty dir places the output next to the input.
func FinalOutputPath(dir, inputPath string) string {
	if dir == "" {
		dir = filepath.Dir(inputPath)
	}
	name := config.FinalOutputPrefix + CleanBase(inputPath) + config.ExcelExtension
	return filepath.Join(dir, name)
}
