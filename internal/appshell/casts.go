package appshell

import (
	"fmt"

	"github.com/d5/tengo/v2"
)

type (
	// ArgType lists the Go types script arguments can be converted to.
	ArgType interface {
		int64 | float64 | []byte | string | bool
	}
)

// DynFuncNR0 passes arguments as plain Go values and returns undefined.
func DynFuncNR0(goFun func(args ...any) error) tengo.CallableFunc {
	return func(args ...tengo.Object) (tengo.Object, error) {
		iargs := make([]any, len(args))
		for i, v := range args {
			iargs[i] = tengo.ToInterface(v)
		}
		return tengo.UndefinedValue, goFun(iargs...)
	}
}

// FuncNR0 converts every argument to T and returns undefined.
func FuncNR0[T ArgType](goFun func(args ...T) error) tengo.CallableFunc {
	return func(args ...tengo.Object) (tengo.Object, error) {
		targs, err := castArgs[T](args)
		if err != nil {
			return tengo.UndefinedValue, err
		}
		return tengo.UndefinedValue, goFun(targs...)
	}
}

// FuncNR1 converts every argument to T and returns the result as a script
// value.
func FuncNR1[T ArgType, R ArgType](goFun func(args ...T) (R, error)) tengo.CallableFunc {
	return func(args ...tengo.Object) (tengo.Object, error) {
		targs, err := castArgs[T](args)
		if err != nil {
			return tengo.UndefinedValue, err
		}
		val, err := goFun(targs...)
		if err != nil {
			return tengo.UndefinedValue, err
		}
		return tengo.FromInterface(val)
	}
}

func castArgs[T ArgType](args []tengo.Object) ([]T, error) {
	out := make([]T, len(args))
	for i, v := range args {
		if !cast(&out[i], v) {
			return nil, fmt.Errorf("argument %d: cannot cast from tengo:%v to %T", i, v.TypeName(), out[i])
		}
	}
	return out, nil
}

func cast(out any, in tengo.Object) bool {
	var ok bool
	switch out := out.(type) {
	case *int64:
		*out, ok = tengo.ToInt64(in)
	case *string:
		*out, ok = tengo.ToString(in)
	case *float64:
		*out, ok = tengo.ToFloat64(in)
	case *[]byte:
		*out, ok = tengo.ToByteSlice(in)
	case *bool:
		*out, ok = tengo.ToBool(in)
	}
	return ok
}
