package parse

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// mineruBinary is the CLI installed alongside the service in the container
// image. Office documents, images and OCR-parsed PDFs all go through it.
const mineruBinary = "mineru"

// MinerUAvailable reports whether the mineru CLI can be found on PATH.
func MinerUAvailable() bool {
	_, err := exec.LookPath(mineruBinary)
	return err == nil
}

// runMinerU invokes the mineru CLI on a file and reads back the content list
// it wrote under the output directory. Model caches are passed through so
// weights land on the mounted cache volume instead of being re-downloaded.
func (p *Parser) runMinerU(ctx context.Context, path, method string) ([]ContentBlock, error) {
	cmd := exec.CommandContext(ctx, mineruBinary,
		"-p", path,
		"-o", p.outputDir,
		"-m", method,
	)

	cmd.Env = os.Environ()
	if p.modelCacheDir != "" {
		cmd.Env = append(cmd.Env, "XDG_CACHE_HOME="+p.modelCacheDir)
	}
	if p.modelScopeCache != "" {
		cmd.Env = append(cmd.Env, "MODELSCOPE_CACHE="+p.modelScopeCache)
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(out))
		if len(detail) > 512 {
			detail = detail[len(detail)-512:]
		}
		return nil, fmt.Errorf("mineru failed for %v: %w: %v", filepath.Base(path), err, detail)
	}

	return p.readContentList(path, method)
}

// readContentList locates and decodes <stem>/<method>/<stem>_content_list.json
// in the output directory, which is where mineru places its results.
func (p *Parser) readContentList(path, method string) ([]ContentBlock, error) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	listPath := filepath.Join(p.outputDir, stem, method, stem+"_content_list.json")

	if _, err := os.Stat(listPath); err != nil {
		// Auto mode may resolve to either pipeline depending on the input.
		for _, m := range []string{"auto", "ocr", "txt"} {
			candidate := filepath.Join(p.outputDir, stem, m, stem+"_content_list.json")
			if _, err := os.Stat(candidate); err == nil {
				listPath = candidate
				break
			}
		}
	}

	data, err := os.ReadFile(listPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read mineru content list: %w", err)
	}

	blocks, err := DecodeContentList(data)
	if err != nil {
		return nil, err
	}

	// Image paths in the list are relative to the list's directory; resolve
	// them so downstream consumers can open the files.
	baseDir := filepath.Dir(listPath)
	for i := range blocks {
		if blocks[i].ImgPath != "" && !filepath.IsAbs(blocks[i].ImgPath) {
			blocks[i].ImgPath = filepath.Join(baseDir, blocks[i].ImgPath)
		}
	}

	return blocks, nil
}

// DecodeContentList parses content_list.json bytes into blocks, dropping
// entries with no usable payload.
func DecodeContentList(data []byte) ([]ContentBlock, error) {
	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return nil, fmt.Errorf("failed to decode content list: %w", err)
	}

	kept := blocks[:0]
	for _, block := range blocks {
		if block.Type == "" {
			block.Type = TypeText
		}
		if strings.TrimSpace(block.RawText()) == "" && block.ImgPath == "" {
			continue
		}
		kept = append(kept, block)
	}

	return kept, nil
}
