// Package transform compiles user-supplied Go functions of one string
// argument and applies them to rendered text.
//
// Every Transform owns its own yaegi interpreter, so two entities defining a
// function with the same name never see each other's code.
package transform

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/use-agent/scrapedeck/models"
)

var (
	namedFunc = regexp.MustCompile(`^func\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	funcLit   = regexp.MustCompile(`^func\s*\(`)
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

// Transform is a compiled unary function from text to display value. A
// Transform whose compilation failed is a fallback: it ignores its input and
// yields the compile error's description.
type Transform struct {
	source string
	fn     reflect.Value
	err    error
}

// Source returns the source the transform was compiled from.
func (t *Transform) Source() string { return t.source }

// Err returns the compile error of a fallback transform, or nil.
func (t *Transform) Err() error { return t.err }

// Fallback returns a transform that always yields err's description.
func Fallback(source string, err error) *Transform {
	return &Transform{source: source, err: err}
}

// Compile checks the shape of source and compiles it in a fresh interpreter.
//
// The trimmed source must start with "func" and contain "return". A named
// declaration such as
//
//	func clean(s string) string { return strings.TrimSpace(s) }
//
// is looked up by its name after evaluation; a function literal is evaluated
// directly. Standard library packages are importable without an import line.
// The function must take exactly one string and return at least one value.
func Compile(source string) (t *Transform, err error) {
	src := strings.TrimSpace(source)
	if !strings.HasPrefix(src, "func") || !strings.Contains(src, "return") {
		return nil, models.NewScrapeError(models.ErrCodeMalformedTransform,
			"transform must be a func declaration containing a return statement", nil)
	}

	defer func() {
		if r := recover(); r != nil {
			t = nil
			err = models.NewScrapeError(models.ErrCodeCompile, "compile transform", fmt.Errorf("panic: %v", r))
		}
	}()

	i := interp.New(interp.Options{Stdout: io.Discard, Stderr: io.Discard})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeCompile, "load stdlib symbols", err)
	}
	i.ImportUsed()

	var fn reflect.Value
	switch {
	case namedFunc.MatchString(src):
		name := namedFunc.FindStringSubmatch(src)[1]
		if _, err := i.Eval(src); err != nil {
			return nil, models.NewScrapeError(models.ErrCodeCompile, "compile transform", err)
		}
		fn, err = i.Eval(name)
	case funcLit.MatchString(src):
		fn, err = i.Eval(src)
	default:
		return nil, models.NewScrapeError(models.ErrCodeMalformedTransform,
			"transform must start with a func declaration or literal", nil)
	}
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeCompile, "compile transform", err)
	}

	fn = unwrap(fn)
	if err := checkSignature(fn); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeCompile, "unsupported transform signature", err)
	}

	return &Transform{source: source, fn: fn}, nil
}

// CompileOrFallback is Compile with failures folded into a fallback transform.
func CompileOrFallback(source string) *Transform {
	t, err := Compile(source)
	if err != nil {
		return Fallback(source, err)
	}
	return t
}

// unwrap strips the pointer and interface layers yaegi puts around the
// value of an evaluated expression, such as a function literal.
func unwrap(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func checkSignature(fn reflect.Value) error {
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return errors.New("not a function")
	}
	ft := fn.Type()
	if ft.NumIn() != 1 || ft.In(0).Kind() != reflect.String || ft.IsVariadic() {
		return fmt.Errorf("want exactly one string parameter, got %s", ft)
	}
	if ft.NumOut() == 0 {
		return fmt.Errorf("want at least one result, got %s", ft)
	}
	return nil
}

// Call runs the transform on text. Results that are not strings are
// formatted with fmt.Sprint. A panic, or a non-nil error returned as the
// last result, comes back as a TRANSFORM_RUNTIME error.
func (t *Transform) Call(text string) (out string, err error) {
	if t.err != nil {
		return "", t.err
	}

	defer func() {
		if r := recover(); r != nil {
			out = ""
			err = models.NewScrapeError(models.ErrCodeTransformRuntime, "transform panicked", fmt.Errorf("%v", r))
		}
	}()

	arg := reflect.ValueOf(text).Convert(t.fn.Type().In(0))
	results := t.fn.Call([]reflect.Value{arg})

	if n := len(results); n > 1 {
		last := results[n-1]
		if last.Type().Implements(errorType) && !last.IsNil() {
			return "", models.NewScrapeError(models.ErrCodeTransformRuntime, "transform returned an error",
				last.Interface().(error))
		}
	}
	return display(results[0]), nil
}

func display(v reflect.Value) string {
	if v.Kind() == reflect.String {
		return v.String()
	}
	if !v.CanInterface() {
		return v.String()
	}
	return fmt.Sprint(v.Interface())
}

// Apply runs t on text. A nil transform returns text unchanged; any failure
// is returned as its description instead of the result.
func Apply(text string, t *Transform) string {
	if t == nil {
		return text
	}
	out, err := t.Call(text)
	if err != nil {
		return err.Error()
	}
	return out
}
