package appshell

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/parser"
	"github.com/d5/tengo/v2/stdlib"
)

type (
	Shell struct {
		modules   *tengo.ModuleMap
		globals   []string
		shortcuts []Shortcut
	}

	// Shortcut handles a console line starting with "/" without going
	// through the interpreter. It returns false if fields are not meant for
	// it.
	Shortcut func(ctx context.Context, fields []string) (bool, error)
)

const (
	prompt         = "> "
	continuePrompt = ". "
)

func New(withStdlib bool) *Shell {
	s := &Shell{
		modules: tengo.NewModuleMap(),
	}
	if withStdlib {
		s.modules.AddMap(stdlib.GetModuleMap(stdlib.AllModuleNames()...))
	}
	return s
}

// AddModules makes every module importable, they are also visible as
// globals named after the module.
func (s *Shell) AddModules(m ...*Module) {
	for _, v := range m {
		s.modules.Add(v.name, v.builtin())
		s.globals = append(s.globals, v.name)
	}
}

func (s *Shell) AddShortcuts(sc ...Shortcut) {
	s.shortcuts = append(s.shortcuts, sc...)
}

// Eval runs code as the body of a function, the returned value is converted
// back to Go.
func (s *Shell) Eval(ctx context.Context, code string) (any, error) {
	var preamble strings.Builder
	for _, name := range s.globals {
		fmt.Fprintf(&preamble, "%v := import(%q)\n", name, name)
	}
	wrapCode := fmt.Sprintf("%voutput := (func() { %v \n})()", preamble.String(), code)
	sc := tengo.NewScript([]byte(wrapCode))
	sc.EnableFileImport(false)
	sc.SetImports(s.modules)
	result, err := sc.RunContext(ctx)
	if err != nil {
		return nil, err
	}
	output := result.Get("output")
	if output.IsUndefined() {
		return nil, nil
	}
	return tengo.ToInterface(output.Object()), nil
}

func (s *Shell) ValidScript(input string) bool {
	fileSet := parser.NewFileSet()
	srcFile := fileSet.AddFile("(main)", -1, len(input))
	p := parser.NewParser(srcFile, []byte(input), nil)
	_, err := p.ParseFile()
	return err == nil
}

// EvalInteractive reads code from rw until it is a valid script and
// evaluates it, writing results and errors back to rw. An empty line forces
// evaluation of whatever was typed so far.
//
// Errors from scripts are reported to rw and do not stop the session, which
// ends when rw reaches EOF or ctx is done.
func (s *Shell) EvalInteractive(ctx context.Context, rw io.ReadWriter) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(rw)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	var code strings.Builder
	fmt.Fprint(rw, prompt)
	for {
		var line string
		var more bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, more = <-lines:
		}
		if !more {
			if code.Len() > 0 {
				s.evalAndPrint(ctx, rw, code.String())
			}
			select {
			case err := <-readErr:
				return err
			default:
				return nil
			}
		}

		trimmed := strings.TrimSpace(line)
		switch {
		case code.Len() == 0 && trimmed == "":
		case code.Len() == 0 && strings.HasPrefix(trimmed, "/"):
			s.runShortcut(ctx, rw, strings.Fields(trimmed))
		case trimmed == "":
			s.evalAndPrint(ctx, rw, code.String())
			code.Reset()
		default:
			code.WriteString(line)
			code.WriteString("\n")
			if s.ValidScript(code.String()) {
				s.evalAndPrint(ctx, rw, code.String())
				code.Reset()
			}
		}

		if code.Len() > 0 {
			fmt.Fprint(rw, continuePrompt)
		} else {
			fmt.Fprint(rw, prompt)
		}
	}
}

func (s *Shell) runShortcut(ctx context.Context, w io.Writer, fields []string) {
	for _, sc := range s.shortcuts {
		handled, err := sc(ctx, fields)
		if !handled {
			continue
		}
		if err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
		}
		return
	}
	fmt.Fprintf(w, "error: unknown command %v\n", fields[0])
}

func (s *Shell) evalAndPrint(ctx context.Context, w io.Writer, code string) {
	out, err := s.Eval(ctx, code)
	if err != nil {
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}
	if out != nil {
		json.NewEncoder(w).Encode(out)
	}
}
