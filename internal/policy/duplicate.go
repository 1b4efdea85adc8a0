package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/On-Jun9/phockup/pkg/types"
)

// MaxSuffix bounds the collision counter for a single target path.
const MaxSuffix = 100000

var ErrTooManyCollisions = errors.New("too many name collisions")

const compareChunkSize = 64 * 1024

// DuplicateResolver finds either an identical file at the planned target or the next
// free "-N" suffixed slot. It never overwrites anything.
//
// A slot handed out for PROCEED is claimed for the rest of the run, so later files see
// it as taken even before (or, in dry-run, without) the transfer writing it.
type DuplicateResolver struct {
	move        bool
	skipUnknown bool
	deleteDups  bool

	mu     sync.Mutex
	claims map[string]string
}

func NewDuplicateResolver(move, skipUnknown, deleteDups bool) *DuplicateResolver {
	return &DuplicateResolver{
		move:        move,
		skipUnknown: skipUnknown,
		deleteDups:  deleteDups,
		claims:      make(map[string]string),
	}
}

// Resolve decides what to do with src given its desired target. A file on disk takes
// precedence over a claim; an unwritten claimed slot is compared against the source
// that claimed it and reported with Pending set.
func (d *DuplicateResolver) Resolve(src, desired string) (types.Resolution, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for suffix := 1; suffix <= MaxSuffix; suffix++ {
		candidate := SuffixedPath(desired, suffix)

		info, err := os.Stat(candidate)
		switch {
		case err == nil:
			if info.IsDir() {
				continue
			}
			same, err := SameContent(src, candidate)
			if err != nil {
				return types.Resolution{}, err
			}
			if same {
				return d.duplicate(candidate, suffix, false), nil
			}
			continue
		case !errors.Is(err, os.ErrNotExist):
			return types.Resolution{}, err
		}

		owner, claimed := d.claims[candidate]
		if !claimed || owner == src {
			d.claims[candidate] = src
			return types.Resolution{Action: types.ActionProceed, TargetPath: candidate, Suffix: suffix}, nil
		}

		if _, err := os.Stat(src); err != nil {
			return types.Resolution{}, err
		}
		// An unreadable owner keeps its slot.
		if same, err := SameContent(src, owner); err == nil && same {
			return d.duplicate(candidate, suffix, true), nil
		}
	}

	return types.Resolution{}, fmt.Errorf("%w for %s", ErrTooManyCollisions, desired)
}

// Release drops the claim src holds on target, after its transfer failed.
func (d *DuplicateResolver) Release(src, target string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.claims[target] == src {
		delete(d.claims, target)
	}
}

func (d *DuplicateResolver) duplicate(target string, suffix int, pending bool) types.Resolution {
	action := types.ActionSkipDuplicate
	if d.move && d.skipUnknown && d.deleteDups {
		action = types.ActionDeleteDuplicate
	}
	return types.Resolution{Action: action, TargetPath: target, Suffix: suffix, Pending: pending}
}

// SuffixedPath inserts "-n" before the extension of path. n <= 1 returns path unchanged.
func SuffixedPath(path string, n int) string {
	if n <= 1 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(path, ext), n, ext)
}

// SameContent compares two files byte for byte.
func SameContent(a, b string) (bool, error) {
	infoA, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	infoB, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	if infoA.Size() != infoB.Size() {
		return false, nil
	}

	fa, err := os.Open(a)
	if err != nil {
		return false, err
	}
	defer fa.Close()

	fb, err := os.Open(b)
	if err != nil {
		return false, err
	}
	defer fb.Close()

	bufA := make([]byte, compareChunkSize)
	bufB := make([]byte, compareChunkSize)
	for {
		na, errA := io.ReadFull(fa, bufA)
		nb, errB := io.ReadFull(fb, bufB)
		if na != nb || !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}

		doneA := errA == io.EOF || errA == io.ErrUnexpectedEOF
		doneB := errB == io.EOF || errB == io.ErrUnexpectedEOF
		if errA != nil && !doneA {
			return false, errA
		}
		if errB != nil && !doneB {
			return false, errB
		}
		if doneA || doneB {
			return doneA == doneB, nil
		}
	}
}
