package testdata

type TestStruct struct {
	A int8
	B int32
	C int8
	D float64
}

// @layout skip
type Ignored struct {
	X int64
}

type Embedded struct {
	TestStruct
	_    [3]byte
	Flag bool
}

type Generic[T any] struct {
	V T
}

type NotAStruct int
