package stages

import (
	"bufio"
	"fmt"
	"os"
	"regexp"

	"github.com/fogfactory/fanout"
)

// maxLineSize bounds the length of a line read by Cat.
const maxLineSize = 1 << 20

// CatStage reads the file whose path it receives and sends its lines, without line terminators.
type CatStage struct {
	guard
	target fanout.Stage[string]
}

// Cat builds a CatStage forwarding lines to target.
func Cat(target fanout.Stage[string]) *CatStage {
	return &CatStage{guard: guard{name: "cat"}, target: target}
}

func (s *CatStage) Send(path string) error {
	if err := s.check(); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cat: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if err := s.target.Send(scanner.Text()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("cat %s: %w", path, err)
	}
	return nil
}

func (s *CatStage) Close() error {
	if err := s.close(); err != nil {
		return err
	}
	return s.target.Close()
}

// GrepStage forwards the lines matching a regular expression.
type GrepStage struct {
	guard
	regex  *regexp.Regexp
	target fanout.Stage[string]
}

// Grep compiles pattern and builds a GrepStage forwarding matching lines to target.
func Grep(pattern string, target fanout.Stage[string]) (*GrepStage, error) {
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("grep: %w", err)
	}
	return &GrepStage{guard: guard{name: "grep"}, regex: regex, target: target}, nil
}

func (s *GrepStage) Send(line string) error {
	if err := s.check(); err != nil {
		return err
	}
	if !s.regex.MatchString(line) {
		return nil
	}
	return s.target.Send(line)
}

func (s *GrepStage) Close() error {
	if err := s.close(); err != nil {
		return err
	}
	return s.target.Close()
}
