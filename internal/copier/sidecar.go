package copier

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SidecarExt is the extension of metadata sidecar files.
const SidecarExt = ".xmp"

// Sidecar is a metadata file that travels with a primary file.
type Sidecar struct {
	Path string
	// KeepsExt is true for the "photo.jpg.xmp" form and false for "photo.xmp".
	KeepsExt bool
}

// SidecarResult is one attempted sidecar transfer.
type SidecarResult struct {
	Source string
	Target string
	Err    error
}

// FindSidecars returns the sidecars of primary in both naming forms. Either case of the
// extension is accepted.
func FindSidecars(primary string) []Sidecar {
	var found []Sidecar

	stem := strings.TrimSuffix(primary, filepath.Ext(primary))
	for _, form := range []struct {
		base     string
		keepsExt bool
	}{
		{primary, true},
		{stem, false},
	} {
		if !form.keepsExt && stem == primary {
			continue
		}
		for _, ext := range []string{SidecarExt, strings.ToUpper(SidecarExt)} {
			if isFile(form.base + ext) {
				found = append(found, Sidecar{Path: form.base + ext, KeepsExt: form.keepsExt})
				break
			}
		}
	}

	return found
}

// SidecarName returns the target name of a sidecar given the planned primary file name
// and the collision suffix the primary ended up with.
func SidecarName(s Sidecar, fileName string, suffix int) string {
	tag := ""
	if suffix > 1 {
		tag = fmt.Sprintf("-%d", suffix)
	}
	if s.KeepsExt {
		return fileName + tag + SidecarExt
	}
	return strings.TrimSuffix(fileName, filepath.Ext(fileName)) + tag + SidecarExt
}

// TransferSidecars moves the sidecars of primary next to it in outputDir using the
// same mode as the primary. An occupied sidecar target is left alone.
func (t *Transferer) TransferSidecars(primary, outputDir, fileName string, suffix int) []SidecarResult {
	var results []SidecarResult

	for _, s := range FindSidecars(primary) {
		target := filepath.Join(outputDir, SidecarName(s, fileName, suffix))
		result := SidecarResult{Source: s.Path, Target: target}

		if _, err := os.Lstat(target); err == nil {
			result.Err = fmt.Errorf("%s: %w", target, ErrTargetExists)
		} else {
			result.Err = t.Transfer(s.Path, target)
		}

		results = append(results, result)
	}

	return results
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
