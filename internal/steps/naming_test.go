package steps

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanBase(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"plain file", "Supplier TSS.xlsx", "Supplier TSS"},
		{"nested path", filepath.Join("in", "deep", "Supplier TSS.xlsx"), "Supplier TSS"},
		{"step suffix stripped", "Supplier TSS - Step3.xlsx", "Supplier TSS"},
		{"multi digit step", "Supplier TSS - Step12.xlsx", "Supplier TSS"},
		{"final prefix stripped", "Standard Internal TSS - Supplier.xlsx", "Supplier"},
		{"prefix and suffix", "Standard Internal TSS - Supplier - Step2.xlsx", "Supplier"},
		{"suffix mid-name kept", "Supplier - Step2 rework.xlsx", "Supplier - Step2 rework"},
		{"no extension", "Supplier TSS", "Supplier TSS"},
		{"uppercase extension", "Supplier TSS.XLSX", "Supplier TSS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanBase(tt.path))
		})
	}
}

func TestStepOutputPath(t *testing.T) {
	tests := []struct {
		name  string
		dir   string
		input string
		n     int
		want  string
	}{
		{
			"explicit dir",
			"out",
			filepath.Join("in", "Supplier.xlsx"),
			1,
			filepath.Join("out", "Supplier - Step1.xlsx"),
		},
		{
			"empty dir stays beside input",
			"",
			filepath.Join("in", "Supplier.xlsx"),
			3,
			filepath.Join("in", "Supplier - Step3.xlsx"),
		},
		{
			"stepped input does not stack suffixes",
			"",
			filepath.Join("in", "Supplier - Step1.xlsx"),
			2,
			filepath.Join("in", "Supplier - Step2.xlsx"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StepOutputPath(tt.dir, tt.input, tt.n))
		})
	}
}

func TestFinalOutputPath(t *testing.T) {
	got := FinalOutputPath("", filepath.Join("in", "Supplier - Step5.xlsx"))
	assert.Equal(t, filepath.Join("in", "Standard Internal TSS - Supplier.xlsx"), got)

	got = FinalOutputPath("out", "Supplier.xlsx")
	assert.Equal(t, filepath.Join("out", "Standard Internal TSS - Supplier.xlsx"), got)

	// Rerunning on a finished file keeps the prefix single.
	got = FinalOutputPath("out", "Standard Internal TSS - Supplier.xlsx")
	assert.Equal(t, filepath.Join("out", "Standard Internal TSS - Supplier.xlsx"), got)
}
