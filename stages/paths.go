package stages

import (
	"fmt"
	"os"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/fogfactory/fanout"
)

// DirWalkStage walks the directory tree whose root it receives and sends the path of every regular file.
// Paths are sent in no particular order, since the tree is read concurrently.
type DirWalkStage struct {
	guard
	conf   fastwalk.Config
	mu     sync.Mutex // serialises target.Send, fastwalk calls back from several goroutines
	target fanout.Stage[string]
}

// DirWalk builds a DirWalkStage forwarding file paths to target. Symbolic links are not followed.
func DirWalk(target fanout.Stage[string]) *DirWalkStage {
	return &DirWalkStage{
		guard:  guard{name: "dirwalk"},
		conf:   fastwalk.Config{Follow: false},
		target: target,
	}
}

func (s *DirWalkStage) Send(root string) error {
	if err := s.check(); err != nil {
		return err
	}
	err := fastwalk.Walk(&s.conf, root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.target.Send(path)
	})
	if err != nil {
		return fmt.Errorf("dirwalk %s: %w", root, err)
	}
	return nil
}

func (s *DirWalkStage) Close() error {
	if err := s.close(); err != nil {
		return err
	}
	return s.target.Close()
}

// GlobStage forwards the paths matching a doublestar pattern, such as "**/*.go".
type GlobStage struct {
	guard
	pattern string
	target  fanout.Stage[string]
}

// Glob validates pattern and builds a GlobStage forwarding matching paths to target.
func Glob(pattern string, target fanout.Stage[string]) (*GlobStage, error) {
	if !doublestar.ValidatePathPattern(pattern) {
		return nil, fmt.Errorf("glob: %w: %q", doublestar.ErrBadPattern, pattern)
	}
	return &GlobStage{guard: guard{name: "glob"}, pattern: pattern, target: target}, nil
}

func (s *GlobStage) Send(path string) error {
	if err := s.check(); err != nil {
		return err
	}
	ok, err := doublestar.PathMatch(s.pattern, path)
	if err != nil {
		return fmt.Errorf("glob: %w", err)
	}
	if !ok {
		return nil
	}
	return s.target.Send(path)
}

func (s *GlobStage) Close() error {
	if err := s.close(); err != nil {
		return err
	}
	return s.target.Close()
}
