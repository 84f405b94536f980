package eval

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lurk-zk/pkg/reader"
	"lurk-zk/pkg/zstore"
)

func newTestMachine(t *testing.T, opts ...Option) *Machine {
	t.Helper()
	m, err := NewMachine(zstore.NewStore(), opts...)
	require.NoError(t, err)
	return m
}

func evalSrc(t *testing.T, m *Machine, src string) (zstore.ZPtr, *Record) {
	t.Helper()
	expr, err := reader.Read(m.Store(), src)
	require.NoError(t, err, "read %q", src)
	res, rec, err := m.Eval(expr, m.Store().EmptyEnv())
	require.NoError(t, err, "eval %q", src)
	return res, rec
}

func assertEval(t *testing.T, m *Machine, src, want string) {
	t.Helper()
	got, _ := evalSrc(t, m, src)
	expected, err := reader.Read(m.Store(), want)
	require.NoError(t, err)
	assert.True(t, expected.Equal(got), "%s: want %s, have %s", src, want, m.Store().Fmt(got))
}

func assertEvalErr(t *testing.T, m *Machine, src string, want zstore.EvalErr) {
	t.Helper()
	got, _ := evalSrc(t, m, src)
	kind, ok := zstore.ErrKind(got)
	require.True(t, ok, "%s: want <Err %s>, have %s", src, want, m.Store().Fmt(got))
	assert.Equal(t, want, kind, src)
}

func TestSelfEvaluating(t *testing.T) {
	m := newTestMachine(t)
	for _, src := range []string{"1", "7u64", "'a'", `"str"`, ":key", "nil", "t", "#0x5"} {
		assertEval(t, m, src, src)
	}
}

func TestArithmetic(t *testing.T) {
	m := newTestMachine(t)
	cases := []struct{ src, want string }{
		{"(+ 1 2)", "3"},
		{"(+ 1u64 2u64)", "3u64"},
		{"(- 5 7)", "-2"},
		{"(* 6 7)", "42"},
		{"(/ 6 3)", "2"},
		{"(- 0u64 1u64)", "18446744073709551615u64"},
		{"(* 4294967296u64 4294967296u64)", "0u64"},
		{"(/ 7u64 2u64)", "3u64"},
		{"(% 7u64 3u64)", "1u64"},
		{"(< 1 2)", "t"},
		{"(> 1 2)", "nil"},
		{"(<= 2 2)", "t"},
		{"(>= 1u64 2u64)", "nil"},
		{"(= 3 (+ 1 2))", "t"},
		{"(< #0x1 #0x2)", "t"},
		{"(= #0x3 #0x3)", "t"},
	}
	for _, c := range cases {
		assertEval(t, m, c.src, c.want)
	}
}

func TestArithmeticErrors(t *testing.T) {
	m := newTestMachine(t)
	cases := []struct {
		src  string
		want zstore.EvalErr
	}{
		{"(/ 1 0)", zstore.DivByZero},
		{"(/ 1u64 0u64)", zstore.DivByZero},
		{"(% 1u64 0u64)", zstore.DivByZero},
		{"(% 7 2)", zstore.NotU64},
		{"(+ 1 2u64)", zstore.InvalidArg},
		{"(+ #0x1 #0x2)", zstore.InvalidArg},
		{"(+ 'a' 1)", zstore.InvalidArg},
		{"(+ 1)", zstore.InvalidForm},
	}
	for _, c := range cases {
		assertEvalErr(t, m, c.src, c.want)
	}
}

func TestBindingForms(t *testing.T) {
	m := newTestMachine(t)
	cases := []struct{ src, want string }{
		{"(let ((a 1) (b (+ a 1))) b)", "2"},
		{"(let () 5)", "5"},
		{"(let ((a 1)) 2 3 a)", "1"},
		{"((lambda (x y) (+ x y)) 1 2)", "3"},
		{"(((lambda (x y) (+ x y)) 1) 2)", "3"},
		{"((lambda (x) (lambda (y) (+ x y))) 1 2)", "3"},
		{"((lambda (&rest xs) xs) 1 (+ 1 1) 3)", "(1 2 3)"},
		{"((lambda (a &rest xs) (cons a xs)) 1 2)", "(1 2)"},
		{"((lambda () 9))", "9"},
		{"(apply (lambda (x y) (* x y)) '(6 7))", "42"},
		{`(letrec ((fib (lambda (n) (if (< n 2) n (+ (fib (- n 1)) (fib (- n 2))))))) (fib 10))`, "55"},
		{`(letrec ((even (lambda (n) (if (= n 0) t (odd (- n 1)))))
		           (odd (lambda (n) (if (= n 0) nil (even (- n 1))))))
		    (even 10))`, "t"},
		{`(letrec ((sum (lambda (xs) (if (eq xs nil) 0 (+ (car xs) (sum (cdr xs)))))))
		    (sum '(1 2 3 4 5)))`, "15"},
	}
	for _, c := range cases {
		assertEval(t, m, c.src, c.want)
	}
}

func TestLongestCommonSubsequence(t *testing.T) {
	m := newTestMachine(t)
	src := `(letrec ((lcs (lambda (a b)
	          (if (eq a "") ""
	            (if (eq b "") ""
	              (if (eq (car a) (car b))
	                (strcons (car a) (lcs (cdr a) (cdr b)))
	                (let ((x (lcs a (cdr b)))
	                      (y (lcs (cdr a) b)))
	                  (if (> (length x) (length y)) x y)))))))
	         (length (lambda (s) (if (eq s "") 0 (+ 1 (length (cdr s)))))))
	  (lcs "abcd" "axcyd"))`
	assertEval(t, m, src, `"acd"`)
}

func TestLanguageProperties(t *testing.T) {
	m := newTestMachine(t)
	cases := []struct{ src, want string }{
		{"(let ((x 1) (x 2)) x)", "2"},
		{`(letrec ((f (lambda (n) (if (= n 0) 1 (g (- n 1)))))
		           (g (lambda (n) (if (= n 0) 2 (f (- n 1))))))
		    (f 3))`, "2"},
		{`(letrec ((f (lambda (n) (if (= n 0) 1 (g (- n 1)))))
		           (g (lambda (n) (if (= n 0) 2 (f (- n 1))))))
		    (f 4))`, "1"},
		{"(apply (lambda (a &rest b) b) '(1 2 3))", "(2 3)"},
		{"(eq (cons 1 2) (cons 1 2))", "t"},
		{"(letrec ((fib (lambda (n) (if (<= n 1) n (+ (fib (- n 1)) (fib (- (- n 1) 1))))))) (fib 10))", "55"},
	}
	for _, c := range cases {
		assertEval(t, m, c.src, c.want)
	}
	assertEvalErr(t, m, "(let ((x 1)) y)", zstore.UnboundVar)
}

func TestBindingErrors(t *testing.T) {
	m := newTestMachine(t)
	cases := []struct {
		src  string
		want zstore.EvalErr
	}{
		{"x", zstore.UnboundVar},
		{"(let ((1 2)) 1)", zstore.IllegalBindingVar},
		{"(let ((a)) a)", zstore.InvalidForm},
		{"(let ((a 1)))", zstore.InvalidForm},
		{"(letrec ((1 2)) 1)", zstore.IllegalBindingVar},
		{"(letrec ((f (car 1))) 1)", zstore.NotCons},
		{"(lambda (x))", zstore.InvalidForm},
		{"(1 2)", zstore.ApplyNonFunc},
		{"((lambda 1 1) 2)", zstore.ParamsNotList},
		{"((lambda (1) 1) 2)", zstore.IllegalBindingVar},
		{"((lambda (x) x) . 1)", zstore.ArgsNotList},
		{"((lambda (&rest) 1))", zstore.ParamInvalidRest},
		{"((lambda (&rest a b) 1))", zstore.ParamInvalidRest},
		{"((lambda (&rest 1) 1))", zstore.IllegalBindingVar},
		{"((lambda (&rest . a) 1))", zstore.ParamsNotList},
	}
	for _, c := range cases {
		assertEvalErr(t, m, c.src, c.want)
	}
}

func TestUndersaturatedSkipsParamCheck(t *testing.T) {
	m := newTestMachine(t)
	got, _ := evalSrc(t, m, "((lambda (1) 1))")
	assert.Equal(t, zstore.TagFun, got.Tag)
}

func TestDeepRecursion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping deep recursion in short mode")
	}
	m := newTestMachine(t)
	got, rec := evalSrc(t, m, `(letrec ((count (lambda (n) (if (= n 0) 0 (+ 1 (count (- n 1)))))))
	  (count 20000))`)
	assert.Equal(t, m.Store().NumUint64(20000), got)
	assert.GreaterOrEqual(t, rec.Depth, uint32(20000))
}

func TestErrorsPropagateUnchanged(t *testing.T) {
	m := newTestMachine(t)
	for _, src := range []string{
		"(cons (car 1) 2)",
		"(+ 1 (car 1))",
		"(begin (car 1) 2)",
		"(let ((a (car 1))) 5)",
		"((lambda (x) 5) (car 1))",
		"(if (car 1) 1 2)",
		"(list 1 (car 1) 3)",
	} {
		assertEvalErr(t, m, src, zstore.NotCons)
	}
}

func TestControl(t *testing.T) {
	m := newTestMachine(t)
	cases := []struct{ src, want string }{
		{"(if nil 1)", "nil"},
		{"(if t 1)", "1"},
		{"(if nil 1 2)", "2"},
		{"(if 0 1 2)", "1"},
		{"(begin 1 2 3)", "3"},
		{"(begin)", "nil"},
		{"(quote (a b))", "(a b)"},
		{"(list 1 (+ 1 1))", "(1 2)"},
		{"(list)", "nil"},
		{"(breakpoint)", "nil"},
		{"(breakpoint (+ 1 1))", "2"},
		{"(eval '(+ 1 2))", "3"},
		{"(eval 'x (bind 'x 5 (empty-env)))", "5"},
		{"(eval 'a (let ((a 1)) (current-env)))", "1"},
		{"(eval 'b (env '(a . 1) '(b . 2)))", "2"},
		{"(eval 'a (env '(a . 1) '(a . 2)))", "1"},
	}
	for _, c := range cases {
		assertEval(t, m, c.src, c.want)
	}
	assertEvalErr(t, m, "(if 1)", zstore.InvalidForm)
	assertEvalErr(t, m, "(if 1 2 3 4)", zstore.InvalidForm)
	assertEvalErr(t, m, "(quote)", zstore.InvalidForm)
	assertEvalErr(t, m, "(begin 1 . 2)", zstore.InvalidForm)
	assertEvalErr(t, m, "(current-env 1)", zstore.InvalidForm)
	assertEvalErr(t, m, "(breakpoint 1 2)", zstore.InvalidForm)
	assertEvalErr(t, m, "(eval 1 2)", zstore.NotEnv)
	assertEvalErr(t, m, "(bind 1 2 (empty-env))", zstore.IllegalBindingVar)
	assertEvalErr(t, m, "(bind 'a 2 3)", zstore.NotEnv)
	assertEvalErr(t, m, "(env '(1 . 2))", zstore.IllegalBindingVar)
	assertEvalErr(t, m, "(env 1)", zstore.NotCons)
}

func TestFail(t *testing.T) {
	m := newTestMachine(t)
	expr, err := reader.Read(m.Store(), "(begin 1 (fail))")
	require.NoError(t, err)
	_, _, err = m.Eval(expr, m.Store().EmptyEnv())
	assert.True(t, errors.Is(err, ErrExplicitFail))
}

func TestEquality(t *testing.T) {
	m := newTestMachine(t)
	cases := []struct{ src, want string }{
		{"(eq '(1 2) (cons 1 '(2)))", "t"},
		{"(eq 1 1u64)", "nil"},
		{"(eq nil '())", "t"},
		{"(eqq (1 2) (cons 1 '(2)))", "t"},
		{"(eqq x 'x)", "t"},
		{"(type-eq 1 2)", "t"},
		{"(type-eq 1 1u64)", "nil"},
		{"(type-eq nil 'a)", "t"},
		{"(type-eq t 'a)", "t"},
		{"(type-eqq 1 (+ 1 2))", "t"},
		{"(type-eqq (car 1) '(1))", "t"},
	}
	for _, c := range cases {
		assertEval(t, m, c.src, c.want)
	}
}

func TestStringsAndChars(t *testing.T) {
	m := newTestMachine(t)
	cases := []struct{ src, want string }{
		{`(strcons 'a' "bc")`, `"abc"`},
		{`(car "abc")`, "'a'"},
		{`(cdr "abc")`, `"bc"`},
		{`(car "")`, "nil"},
		{`(cdr "")`, `""`},
		{"(car nil)", "nil"},
		{"(cdr '(1 . 2))", "2"},
		{"(u64 'a')", "97u64"},
		{"(char 97u64)", "'a'"},
		{"(u64 (char 4294967295u64))", "4294967295u64"},
		{"(u64 (char 4294967296u64))", "0u64"},
		{"(atom 1)", "t"},
		{"(atom '(1))", "nil"},
		{"(atom nil)", "t"},
	}
	for _, c := range cases {
		assertEval(t, m, c.src, c.want)
	}
	assertEvalErr(t, m, `(strcons 1 "a")`, zstore.NotChar)
	assertEvalErr(t, m, `(strcons 'a' 1)`, zstore.NotString)
	assertEvalErr(t, m, "(car 1)", zstore.NotCons)
	assertEvalErr(t, m, "(u64 1)", zstore.CantCastToU64)
	assertEvalErr(t, m, "(char 1)", zstore.CantCastToChar)
	assertEvalErr(t, m, "(bignum 1)", zstore.CantCastToBigNum)
	assertEvalErr(t, m, "(comm 1)", zstore.CantCastToComm)
	assertEvalErr(t, m, "(car 1 2)", zstore.InvalidForm)
}

func TestCommitments(t *testing.T) {
	m := newTestMachine(t)
	cases := []struct{ src, want string }{
		{"(open (commit 42))", "42"},
		{"(open (hide #0x7 '(1 2)))", "(1 2)"},
		{"(secret (hide #0x7 '(1 2)))", "#0x7"},
		{"(secret (commit 1))", "#0x0"},
		{"((commit (lambda (x) (+ x 1))) 2)", "3"},
		{"(eq (comm (bignum (commit 1))) (commit 1))", "t"},
		{"(open (bignum (commit 5)))", "5"},
		{"(eq (commit 1) (hide #0x0 1))", "t"},
		{"(eq (commit 1) (hide #0x1 1))", "nil"},
	}
	for _, c := range cases {
		assertEval(t, m, c.src, c.want)
	}
	assertEvalErr(t, m, "(hide 7 1)", zstore.NotBigNum)
	assertEvalErr(t, m, "(open #c0x1)", zstore.CantOpen)
	assertEvalErr(t, m, "(secret #0x1)", zstore.CantOpen)
	assertEvalErr(t, m, "(open 1)", zstore.CantOpen)
	assertEvalErr(t, m, "(#c0x1 2)", zstore.CantOpen)
}

func TestRecord(t *testing.T) {
	m := newTestMachine(t)
	res, rec := evalSrc(t, m, "(begin (emit 1) (emit (+ 1 1)) 3)")
	assert.True(t, res.Equal(m.Store().NumUint64(3)))
	require.Len(t, rec.Emitted, 2)
	assert.True(t, rec.Emitted[1].Equal(m.Store().NumUint64(2)))
	assert.Equal(t, uint64(1), rec.CallCount("lurk_main"))
	assert.Greater(t, rec.CallCount("eval"), uint64(5))
	assert.Greater(t, rec.Steps, uint64(0))
	assert.Greater(t, rec.Depth, uint32(0))

	_, other := evalSrc(t, m, "(begin (emit 1) (emit (+ 1 1)) 3)")
	assert.Equal(t, rec.Digest(), other.Digest())
	_, shallow := evalSrc(t, m, "3")
	assert.NotEqual(t, rec.Digest(), shallow.Digest())
}

func TestRecordCountsHashes(t *testing.T) {
	m := newTestMachine(t)
	_, rec := evalSrc(t, m, "(cons 1 2)")
	assert.Equal(t, uint64(1), rec.CallCount("preallocate_symbols"))
	assert.Equal(t, uint64(1), rec.CallCount("hash4"))
	assert.Zero(t, rec.CallCount("hash5"))

	_, rec = evalSrc(t, m, "(list 1 2 3)")
	assert.Equal(t, uint64(3), rec.CallCount("hash4"))

	// closure creation and one parameter binding
	_, rec = evalSrc(t, m, "((lambda (x) x) 1)")
	assert.GreaterOrEqual(t, rec.CallCount("hash5"), uint64(2))
}

func TestDepthGrowsWithNesting(t *testing.T) {
	m := newTestMachine(t)
	_, flat := evalSrc(t, m, "(+ 1 1)")
	_, nested := evalSrc(t, m, "(+ 1 (+ 1 (+ 1 (+ 1 1))))")
	assert.Greater(t, nested.Depth, flat.Depth)
}

func TestStepLimit(t *testing.T) {
	m := newTestMachine(t, WithStepLimit(50))
	expr, err := reader.Read(m.Store(), "(letrec ((loop (lambda (n) (loop (+ n 1))))) (loop 0))")
	require.NoError(t, err)
	_, _, err = m.Eval(expr, m.Store().EmptyEnv())
	assert.ErrorIs(t, err, ErrStepLimit)
}

func TestInvalidEnv(t *testing.T) {
	m := newTestMachine(t)
	_, _, err := m.Eval(m.Store().NumUint64(1), m.Store().NumUint64(1))
	assert.ErrorIs(t, err, ErrInvalidEnv)
}

func TestEvalInSuppliedEnv(t *testing.T) {
	m := newTestMachine(t)
	s := m.Store()
	env := s.ExtendEnv(s.UserSym("x"), s.NumUint64(40), s.EmptyEnv())
	expr, err := reader.Read(s, "(+ x 2)")
	require.NoError(t, err)
	res, _, err := m.Eval(expr, env)
	require.NoError(t, err)
	assert.True(t, res.Equal(s.NumUint64(42)))
}

func TestEnvLiteral(t *testing.T) {
	m := newTestMachine(t)
	s := m.Store()
	plus, _ := s.BuiltinSym("+")
	lit := s.ExtendEnv(s.UserSym("a"), s.List(plus, s.NumUint64(1), s.NumUint64(1)), s.EmptyEnv())
	res, _, err := m.Eval(lit, s.EmptyEnv())
	require.NoError(t, err)
	want := s.ExtendEnv(s.UserSym("a"), s.NumUint64(2), s.EmptyEnv())
	assert.True(t, want.Equal(res))
}

func TestCoroutines(t *testing.T) {
	double := Coroutine{
		Name:  "double",
		Arity: 1,
		Fn: func(store *zstore.Store, args []zstore.ZPtr, _ zstore.ZPtr) (zstore.ZPtr, error) {
			if args[0].Tag != zstore.TagU64 {
				return store.Err(zstore.InvalidArg), nil
			}
			return store.U64(2 * args[0].Digest[0].Uint64()), nil
		},
	}
	lang, err := NewLang(double)
	require.NoError(t, err)
	m, err := NewMachine(lang.NewStore(), WithLang(lang))
	require.NoError(t, err)

	assertEval(t, m, "(double (+ 20u64 1u64))", "42u64")
	assertEvalErr(t, m, "(double 1u64 2u64)", zstore.InvalidForm)
	assertEvalErr(t, m, "(double 1)", zstore.InvalidArg)
	assertEvalErr(t, m, "(double (car 1))", zstore.NotCons)

	_, err = NewLang(double, double)
	assert.ErrorIs(t, err, ErrDuplicateCoroutine)
	_, err = NewLang(Coroutine{Name: "car", Arity: 1})
	assert.ErrorIs(t, err, ErrReservedName)
	_, err = NewMachine(zstore.NewStore(), WithLang(lang))
	assert.ErrorIs(t, err, ErrUnregistered)
}

func TestFuncs(t *testing.T) {
	fs := Funcs()
	require.Len(t, fs, int(numFuncs))
	seen := map[string]bool{}
	for i, f := range fs {
		assert.Equal(t, FuncID(i), f.ID)
		assert.False(t, seen[f.Name], f.Name)
		seen[f.Name] = true
	}
	assert.Equal(t, "lurk_main", FuncLurkMain.String())
	assert.True(t, FuncEval.Info().Partial)
	assert.False(t, FuncHash4.Info().Partial)
	assert.Equal(t, zstore.Hash5Size, FuncHash5.Info().InputSize)
}

func TestBuiltinNamesRegistered(t *testing.T) {
	for _, name := range builtinNames {
		assert.Contains(t, zstore.BuiltinNames, name)
	}
	assert.Len(t, zstore.BuiltinNames, int(numBuiltins))
}
