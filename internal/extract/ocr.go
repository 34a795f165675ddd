package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"google.golang.org/genai"
)

const (
	EngineGeminiOCR = "gemini-ocr"
	EngineTesseract = "tesseract"
)

const ocrPrompt = "Transcribe all text in the attached financial report exactly as printed. " +
	"Render every table row on its own line with cells separated by \" | \". " +
	"Do not summarize, translate, or add commentary. Output plain text only."

// ContentGenerator is the part of the genai client the OCR engine uses;
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiOCR sends the PDF to Gemini and asks for a transcription. It reads
// scanned pages that have no text layer.
type GeminiOCR struct {
	models ContentGenerator
	model  string
}

// NewGeminiOCR creates the engine. models is usually client.Models.
func NewGeminiOCR(models ContentGenerator, model string) *GeminiOCR {
	return &GeminiOCR{models: models, model: model}
}

// Name implements Extractor.
func (e *GeminiOCR) Name() string { return EngineGeminiOCR }

// Extract implements Extractor.
func (e *GeminiOCR) Extract(ctx context.Context, doc Document) Result {
	if e.models == nil {
		return failed(EngineGeminiOCR, ReasonUnavailable, errors.New("gemini client not configured"))
	}
	if !doc.IsPDF() {
		return failed(EngineGeminiOCR, ReasonUnsupported, fmt.Errorf("not a PDF: %s", doc.Name))
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: ocrPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: "application/pdf",
						Data:     doc.Data,
					},
				},
			},
		},
	}

	resp, err := e.models.GenerateContent(ctx, e.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		if ctx.Err() != nil {
			return failed(EngineGeminiOCR, contextReason(ctx.Err()), err)
		}
		return failed(EngineGeminiOCR, ReasonEngineError, fmt.Errorf("generate content: %w", err))
	}
	return succeeded(EngineGeminiOCR, resp.Text(), nil, 0)
}

// Tesseract rasterizes pages with pdftoppm and runs tesseract on each image.
type Tesseract struct {
	PdftoppmPath  string
	TesseractPath string
	Lang          string
	DPI           int
}

// NewTesseract creates the engine with binaries looked up on PATH.
func NewTesseract() *Tesseract {
	return &Tesseract{
		PdftoppmPath:  "pdftoppm",
		TesseractPath: "tesseract",
		Lang:          "eng",
		DPI:           300,
	}
}

// Name implements Extractor.
func (e *Tesseract) Name() string { return EngineTesseract }

// IsAvailable reports whether both binaries are installed.
func (e *Tesseract) IsAvailable() bool {
	if _, err := exec.LookPath(e.PdftoppmPath); err != nil {
		return false
	}
	_, err := exec.LookPath(e.TesseractPath)
	return err == nil
}

// Extract implements Extractor.
func (e *Tesseract) Extract(ctx context.Context, doc Document) Result {
	if !e.IsAvailable() {
		return failed(EngineTesseract, ReasonUnavailable, fmt.Errorf("%s or %s not found on PATH", e.PdftoppmPath, e.TesseractPath))
	}
	if !doc.IsPDF() {
		return failed(EngineTesseract, ReasonUnsupported, fmt.Errorf("not a PDF: %s", doc.Name))
	}

	dir, err := os.MkdirTemp("", "ocr-*")
	if err != nil {
		return failed(EngineTesseract, ReasonEngineError, fmt.Errorf("create temp dir: %w", err))
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(input, doc.Data, 0o600); err != nil {
		return failed(EngineTesseract, ReasonEngineError, fmt.Errorf("write temp PDF: %w", err))
	}

	prefix := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, e.PdftoppmPath, "-r", fmt.Sprint(e.DPI), "-png", input, prefix)
	if output, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return failed(EngineTesseract, contextReason(ctx.Err()), ctx.Err())
		}
		return failed(EngineTesseract, ReasonEngineError, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output)))
	}

	images, err := filepath.Glob(prefix + "*.png")
	if err != nil {
		return failed(EngineTesseract, ReasonEngineError, fmt.Errorf("list page images: %w", err))
	}
	sort.Strings(images)

	var text strings.Builder
	for _, img := range images {
		cmd := exec.CommandContext(ctx, e.TesseractPath, img, "stdout", "-l", e.Lang, "--psm", "6")
		out, err := cmd.Output()
		if err != nil {
			if ctx.Err() != nil {
				return failed(EngineTesseract, contextReason(ctx.Err()), ctx.Err())
			}
			return failed(EngineTesseract, ReasonEngineError, fmt.Errorf("tesseract %s: %w", filepath.Base(img), err))
		}
		text.Write(out)
		text.WriteString("\n")
	}

	return succeeded(EngineTesseract, text.String(), nil, len(images))
}
