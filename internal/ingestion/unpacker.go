package ingestion

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/jeovahfialho/b3-pregao/pkg/logger"
	"github.com/jeovahfialho/b3-pregao/pkg/metrics"
)

var ErrUnsafeEntry = errors.New("entrada fora do diretório de destino")

type Unpacker struct {
	// KeepSource preserva o zip informado pelo chamador. Zips aninhados são
	// sempre removidos depois de extraídos.
	KeepSource bool
}

func NewUnpacker(keepSource bool) *Unpacker {
	return &Unpacker{KeepSource: keepSource}
}

type pendingEntry struct {
	path    string
	archive bool
	root    bool
}

// Unpack extrai archivePath em destDir (vazio = diretório do zip) e devolve a
// lista plana de arquivos extraídos. Zips aninhados são expandidos no próprio
// diretório e seus arquivos ocupam o lugar da entrada original na lista.
func (u *Unpacker) Unpack(archivePath, destDir string) ([]string, error) {
	if destDir == "" {
		destDir = filepath.Dir(archivePath)
	}

	files, err := u.unpack(archivePath, destDir)
	if err != nil {
		logger.Warn("falha ao extrair arquivo",
			zap.String("path", archivePath),
			zap.Error(err))
		return nil, err
	}

	metrics.FilesExtracted.Add(float64(len(files)))
	return files, nil
}

func (u *Unpacker) unpack(archivePath, destDir string) ([]string, error) {
	stack := []pendingEntry{{path: archivePath, archive: true, root: true}}
	files := []string{}

	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !item.archive {
			files = append(files, item.path)
			continue
		}

		target := filepath.Dir(item.path)
		if item.root {
			target = destDir
		}

		logger.Debug("extraindo", zap.String("path", item.path), zap.String("dest", target))

		entries, err := extractZip(item.path, target)
		if err != nil {
			return nil, fmt.Errorf("erro ao extrair %s: %w", item.path, err)
		}

		// um zip aninhado com o mesmo nome do pai já o substituiu no disco
		replaced := containsPath(entries, item.path)
		if !replaced && (!item.root || !u.KeepSource) {
			if err := os.Remove(item.path); err != nil {
				return nil, fmt.Errorf("erro ao remover %s: %w", item.path, err)
			}
		}

		// empilha ao contrário para desempilhar na ordem do zip
		for i := len(entries) - 1; i >= 0; i-- {
			stack = append(stack, pendingEntry{path: entries[i], archive: isArchive(entries[i])})
		}
	}

	return files, nil
}

func containsPath(paths []string, target string) bool {
	for _, p := range paths {
		if filepath.Clean(p) == filepath.Clean(target) {
			return true
		}
	}
	return false
}

func isArchive(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zip")
}

// extractZip grava as entradas de src em dest e devolve os caminhos dos
// arquivos (diretórios são criados mas não listados). Um zip sem entradas
// não cria dest.
func extractZip(src, dest string) ([]string, error) {
	reader, err := zip.OpenReader(src)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	if len(reader.File) == 0 {
		return nil, nil
	}

	if err := os.MkdirAll(dest, 0755); err != nil {
		return nil, err
	}

	absDest, err := filepath.Abs(dest)
	if err != nil {
		return nil, err
	}

	var extracted []string
	for _, file := range reader.File {
		path := filepath.Join(dest, file.Name)

		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		if absPath != absDest && !strings.HasPrefix(absPath, absDest+string(os.PathSeparator)) {
			return nil, fmt.Errorf("%w: %s", ErrUnsafeEntry, file.Name)
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0755); err != nil {
				return nil, err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}

		if err := writeEntry(file, path); err != nil {
			return nil, err
		}

		extracted = append(extracted, path)
	}

	return extracted, nil
}

func writeEntry(file *zip.File, path string) error {
	fileReader, err := file.Open()
	if err != nil {
		return err
	}
	defer fileReader.Close()

	tempFile := path + ".part"
	targetFile, err := os.OpenFile(tempFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(targetFile, fileReader); err != nil {
		targetFile.Close()
		os.Remove(tempFile)
		return err
	}

	if err := targetFile.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}

	return os.Rename(tempFile, path)
}
