package copier

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/On-Jun9/phockup/internal/verify"
	"github.com/On-Jun9/phockup/pkg/types"
)

// writeSource는 테스트 코드 동작을 검증하거나 보조합니다.
func writeSource(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create source file: %v", err)
	}
}

// readFile는 테스트 코드 동작을 검증하거나 보조합니다.
func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

// assertEntries는 테스트 코드 동작을 검증하거나 보조합니다.
func assertEntries(t *testing.T, dir string, want ...string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read %s: %v", dir, err)
	}
	got := make([]string, 0, len(entries))
	for _, e := range entries {
		got = append(got, e.Name())
	}
	sort.Strings(got)
	sort.Strings(want)
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("unexpected entries in %s: got %v, want %v", dir, got, want)
	}
}

// TestTransfer_DryRunDoesNoFileIO는 테스트 코드 동작을 검증하거나 보조합니다.
func TestTransfer_DryRunDoesNoFileIO(t *testing.T) {
	// Dry-run 모드에서는 실제 파일 접근 없이 성공해야 한다.
	for _, mode := range []types.TransferMode{types.TransferCopy, types.TransferMove, types.TransferLink} {
		destPath := filepath.Join(t.TempDir(), "out.jpg")
		tr := New(mode, true, nil)

		if err := tr.Transfer("/path/does/not/exist.jpg", destPath); err != nil {
			t.Fatalf("%s: expected no error in dry-run, got %v", mode, err)
		}
		if _, err := os.Stat(destPath); !os.IsNotExist(err) {
			t.Fatalf("%s: expected no destination file, stat error=%v", mode, err)
		}
	}
}

// TestTransfer_CopyPreservesSourceAndMetadata는 테스트 코드 동작을 검증하거나 보조합니다.
func TestTransfer_CopyPreservesSourceAndMetadata(t *testing.T) {
	// 복사 모드는 소스를 남기고 내용, 권한, 수정 시각을 유지해야 한다.
	tmpDir := t.TempDir()
	srcPath := filepath.Join(tmpDir, "src.jpg")
	destPath := filepath.Join(tmpDir, "out.jpg")
	writeSource(t, srcPath, "photo-bytes")
	if err := os.Chmod(srcPath, 0600); err != nil {
		t.Fatal(err)
	}
	mtime := time.Date(2017, 1, 1, 1, 1, 1, 0, time.UTC)
	if err := os.Chtimes(srcPath, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	if err := New(types.TransferCopy, false, nil).Transfer(srcPath, destPath); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	if got := readFile(t, destPath); got != "photo-bytes" {
		t.Fatalf("unexpected destination content: %q", got)
	}
	if got := readFile(t, srcPath); got != "photo-bytes" {
		t.Fatalf("source changed: %q", got)
	}

	info, err := os.Stat(destPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("expected mode 0600, got %v", info.Mode().Perm())
	}
	if !info.ModTime().Equal(mtime) {
		t.Fatalf("expected mtime %v, got %v", mtime, info.ModTime())
	}
	assertEntries(t, tmpDir, "out.jpg", "src.jpg")
}

// TestTransfer_MoveRemovesSource는 테스트 코드 동작을 검증하거나 보조합니다.
func TestTransfer_MoveRemovesSource(t *testing.T) {
	tmpDir := t.TempDir()
	srcPath := filepath.Join(tmpDir, "in", "src.jpg")
	destPath := filepath.Join(tmpDir, "out.jpg")
	writeSource(t, srcPath, "photo-bytes")

	if err := New(types.TransferMove, false, verify.New(true)).Transfer(srcPath, destPath); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	if got := readFile(t, destPath); got != "photo-bytes" {
		t.Fatalf("unexpected destination content: %q", got)
	}
	if _, err := os.Stat(srcPath); !os.IsNotExist(err) {
		t.Fatalf("expected source to be gone, stat error=%v", err)
	}
}

// TestTransfer_LinkSharesData는 테스트 코드 동작을 검증하거나 보조합니다.
func TestTransfer_LinkSharesData(t *testing.T) {
	// 하드링크는 같은 데이터를 가리키는 새 디렉터리 엔트리여야 한다.
	tmpDir := t.TempDir()
	srcPath := filepath.Join(tmpDir, "src.jpg")
	destPath := filepath.Join(tmpDir, "out.jpg")
	writeSource(t, srcPath, "photo-bytes")

	if err := New(types.TransferLink, false, nil).Transfer(srcPath, destPath); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		t.Fatal(err)
	}
	destInfo, err := os.Stat(destPath)
	if err != nil {
		t.Fatal(err)
	}
	if !os.SameFile(srcInfo, destInfo) {
		t.Fatal("expected destination to be a hardlink of the source")
	}
}

// TestTransfer_LinkFailsLoudlyOnExistingTarget는 테스트 코드 동작을 검증하거나 보조합니다.
func TestTransfer_LinkFailsLoudlyOnExistingTarget(t *testing.T) {
	tmpDir := t.TempDir()
	srcPath := filepath.Join(tmpDir, "src.jpg")
	destPath := filepath.Join(tmpDir, "out.jpg")
	writeSource(t, srcPath, "photo-bytes")
	writeSource(t, destPath, "other")

	err := New(types.TransferLink, false, nil).Transfer(srcPath, destPath)
	if err == nil {
		t.Fatal("expected hardlink error")
	}
	if !errors.Is(err, ErrTargetExists) {
		t.Fatalf("expected ErrTargetExists, got %v", err)
	}
	if got := readFile(t, destPath); got != "other" {
		t.Fatalf("existing target was changed: %q", got)
	}
}

// TestTransfer_SourceVanished는 테스트 코드 동작을 검증하거나 보조합니다.
func TestTransfer_SourceVanished(t *testing.T) {
	// 발견 이후 사라진 소스는 모든 모드에서 구분 가능한 에러여야 한다.
	for _, mode := range []types.TransferMode{types.TransferCopy, types.TransferMove, types.TransferLink} {
		tmpDir := t.TempDir()
		err := New(mode, false, nil).Transfer(filepath.Join(tmpDir, "missing.jpg"), filepath.Join(tmpDir, "out.jpg"))
		if !errors.Is(err, ErrSourceVanished) {
			t.Fatalf("%s: expected ErrSourceVanished, got %v", mode, err)
		}
	}
}

// TestTransfer_RemovesPartFileWhenCopyFails는 테스트 코드 동작을 검증하거나 보조합니다.
func TestTransfer_RemovesPartFileWhenCopyFails(t *testing.T) {
	// 복사 도중 실패하면 .part 임시 파일이 남지 않아야 한다.
	tmpDir := t.TempDir()
	srcDir := filepath.Join(tmpDir, "src-dir")
	if err := os.MkdirAll(srcDir, 0755); err != nil {
		t.Fatalf("failed to create source dir: %v", err)
	}
	destPath := filepath.Join(tmpDir, "out.jpg")

	// 디렉터리를 파일처럼 복사해서 실패를 유도한다.
	if err := New(types.TransferCopy, false, nil).Transfer(srcDir, destPath); err == nil {
		t.Fatal("expected copy error")
	}
	assertEntries(t, tmpDir, "src-dir")
}

// TestTransfer_ReturnsErrorWhenDestinationDirMissing는 테스트 코드 동작을 검증하거나 보조합니다.
func TestTransfer_ReturnsErrorWhenDestinationDirMissing(t *testing.T) {
	// 목적지 디렉터리는 호출 전에 만들어져 있어야 한다.
	tmpDir := t.TempDir()
	srcPath := filepath.Join(tmpDir, "src.jpg")
	writeSource(t, srcPath, "photo")

	parentAsFile := filepath.Join(tmpDir, "not-dir")
	writeSource(t, parentAsFile, "x")

	err := New(types.TransferCopy, false, nil).Transfer(srcPath, filepath.Join(parentAsFile, "out.jpg"))
	if err == nil {
		t.Fatal("expected destination error")
	}
	if errors.Is(err, ErrSourceVanished) {
		t.Fatalf("destination error reported as vanished source: %v", err)
	}
}

// TestAtomicCopy_ReturnsErrorWhenDestinationCreateFails는 테스트 코드 동작을 검증하거나 보조합니다.
func TestAtomicCopy_ReturnsErrorWhenDestinationCreateFails(t *testing.T) {
	// atomicCopy에서 destination 생성이 실패하면 에러를 반환해야 한다.
	tmpDir := t.TempDir()
	srcPath := filepath.Join(tmpDir, "src.jpg")
	writeSource(t, srcPath, "photo")
	info, err := os.Stat(srcPath)
	if err != nil {
		t.Fatal(err)
	}

	partPath, err := atomicCopy(srcPath, filepath.Join(tmpDir, "missing", "out.jpg"), info)
	if err == nil {
		t.Fatal("expected destination create error")
	}
	if partPath != "" {
		t.Fatalf("expected no part path on failure, got %q", partPath)
	}
}

// TestRemove는 테스트 코드 동작을 검증하거나 보조합니다.
func TestRemove(t *testing.T) {
	tmpDir := t.TempDir()
	srcPath := filepath.Join(tmpDir, "dup.jpg")
	writeSource(t, srcPath, "photo")

	if err := New(types.TransferMove, true, nil).Remove(srcPath); err != nil {
		t.Fatalf("dry-run Remove failed: %v", err)
	}
	if _, err := os.Stat(srcPath); err != nil {
		t.Fatalf("dry-run must keep the source: %v", err)
	}

	if err := New(types.TransferMove, false, nil).Remove(srcPath); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(srcPath); !os.IsNotExist(err) {
		t.Fatalf("expected source removed, stat error=%v", err)
	}

	if err := New(types.TransferMove, false, nil).Remove(srcPath); !errors.Is(err, ErrSourceVanished) {
		t.Fatalf("expected ErrSourceVanished, got %v", err)
	}
}

// TestTransfer_NeverReplacesExistingTarget는 테스트 코드 동작을 검증하거나 보조합니다.
func TestTransfer_NeverReplacesExistingTarget(t *testing.T) {
	// 어떤 모드에서도 이미 있는 목적지 파일을 덮어쓰지 않아야 한다.
	for _, mode := range []types.TransferMode{types.TransferCopy, types.TransferMove, types.TransferLink} {
		tmpDir := t.TempDir()
		srcPath := filepath.Join(tmpDir, "src.jpg")
		destPath := filepath.Join(tmpDir, "out.jpg")
		writeSource(t, srcPath, "new-bytes")
		writeSource(t, destPath, "old-bytes")

		err := New(mode, false, nil).Transfer(srcPath, destPath)
		if !errors.Is(err, ErrTargetExists) {
			t.Fatalf("%s: expected ErrTargetExists, got %v", mode, err)
		}
		if got := readFile(t, destPath); got != "old-bytes" {
			t.Fatalf("%s: existing target was changed: %q", mode, got)
		}
		if got := readFile(t, srcPath); got != "new-bytes" {
			t.Fatalf("%s: source changed: %q", mode, got)
		}
		assertEntries(t, tmpDir, "out.jpg", "src.jpg")
	}
}

// TestTransfer_ConcurrentCopiesToOneTarget는 테스트 코드 동작을 검증하거나 보조합니다.
func TestTransfer_ConcurrentCopiesToOneTarget(t *testing.T) {
	// 같은 목적지로 동시에 복사하면 하나만 성공하고 내용이 섞이지 않아야 한다.
	tmpDir := t.TempDir()
	destPath := filepath.Join(tmpDir, "out", "20200501-100000.jpg")
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		t.Fatal(err)
	}

	const workers = 8
	contents := make([][]byte, workers)
	sources := make([]string, workers)
	for i := range sources {
		contents[i] = bytes.Repeat([]byte{byte('a' + i)}, 512*1024)
		sources[i] = filepath.Join(tmpDir, fmt.Sprintf("src%d.jpg", i))
		writeSource(t, sources[i], string(contents[i]))
	}

	tr := New(types.TransferCopy, false, nil)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range sources {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = tr.Transfer(sources[i], destPath)
		}(i)
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		switch {
		case err == nil:
			if winner >= 0 {
				t.Fatalf("both copy %d and %d claim success", winner, i)
			}
			winner = i
		case !errors.Is(err, ErrTargetExists):
			t.Fatalf("copy %d: expected ErrTargetExists, got %v", i, err)
		}
	}
	if winner < 0 {
		t.Fatal("expected one copy to succeed")
	}

	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, contents[winner]) {
		t.Fatal("target does not hold the bytes of the successful copy")
	}
	assertEntries(t, filepath.Dir(destPath), "20200501-100000.jpg")
}

// TestTransfer_MoveAcrossDevices는 테스트 코드 동작을 검증하거나 보조합니다.
func TestTransfer_MoveAcrossDevices(t *testing.T) {
	// 다른 파일시스템으로의 이동은 복사, 검증, 소스 삭제로 처리되어야 한다.
	tmpDir := t.TempDir()
	srcPath := filepath.Join(tmpDir, "in", "src.jpg")
	destPath := filepath.Join(tmpDir, "out.jpg")
	writeSource(t, srcPath, "photo-bytes")
	mtime := time.Date(2018, 8, 1, 9, 0, 0, 0, time.UTC)
	if err := os.Chtimes(srcPath, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	tr := New(types.TransferMove, false, verify.New(true))
	tr.linkFile = func(oldname, newname string) error {
		return &os.LinkError{Op: "link", Old: oldname, New: newname, Err: syscall.EXDEV}
	}

	if err := tr.Transfer(srcPath, destPath); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if got := readFile(t, destPath); got != "photo-bytes" {
		t.Fatalf("unexpected destination content: %q", got)
	}
	if _, err := os.Stat(srcPath); !os.IsNotExist(err) {
		t.Fatalf("expected source to be gone, stat error=%v", err)
	}
	info, err := os.Stat(destPath)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(mtime) {
		t.Fatalf("expected mtime %v, got %v", mtime, info.ModTime())
	}
	assertEntries(t, tmpDir, "in", "out.jpg")
}

// TestTransfer_MoveWithoutHardlinks는 테스트 코드 동작을 검증하거나 보조합니다.
func TestTransfer_MoveWithoutHardlinks(t *testing.T) {
	// 하드링크를 지원하지 않는 파일시스템에서는 목적지를 확인한 뒤 rename 해야 한다.
	noLinks := func(oldname, newname string) error {
		return &os.LinkError{Op: "link", Old: oldname, New: newname, Err: syscall.EPERM}
	}

	tmpDir := t.TempDir()
	srcPath := filepath.Join(tmpDir, "src.jpg")
	destPath := filepath.Join(tmpDir, "out.jpg")
	writeSource(t, srcPath, "photo-bytes")

	tr := New(types.TransferMove, false, nil)
	tr.linkFile = noLinks
	if err := tr.Transfer(srcPath, destPath); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if got := readFile(t, destPath); got != "photo-bytes" {
		t.Fatalf("unexpected destination content: %q", got)
	}

	writeSource(t, srcPath, "other-bytes")
	if err := tr.Transfer(srcPath, destPath); !errors.Is(err, ErrTargetExists) {
		t.Fatalf("expected ErrTargetExists, got %v", err)
	}
	if got := readFile(t, destPath); got != "photo-bytes" {
		t.Fatalf("existing target was changed: %q", got)
	}
}
