package iox

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestReadAllContextCommonCase(t *testing.T) {
	r := strings.NewReader("deadbeef")
	ctx := context.Background()
	out, err := ReadAllContext(ctx, r)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 8 {
		t.Fatal("not the expected number of bytes")
	}
}

func TestReadAllContextWithFailure(t *testing.T) {
	expected := errors.New("mocked error")
	r := &MockableReader{
		MockRead: func(b []byte) (int, error) {
			return 0, expected
		},
	}
	ctx := context.Background()
	out, err := ReadAllContext(ctx, r)
	if !errors.Is(err, expected) {
		t.Fatal("not the error we expected", err)
	}
	if len(out) != 0 {
		t.Fatal("not the expected number of bytes")
	}
}

func TestReadAllContextWithCancelledContext(t *testing.T) {
	r := &MockableReader{
		MockRead: func(b []byte) (int, error) {
			select {} // block forever
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // fail immediately
	out, err := ReadAllContext(ctx, r)
	if !errors.Is(err, context.Canceled) {
		t.Fatal("not the error we expected", err)
	}
	if len(out) != 0 {
		t.Fatal("not the expected number of bytes")
	}
}

func TestCopyContextCommonCase(t *testing.T) {
	r := strings.NewReader("deadbeef")
	var dst bytes.Buffer
	ctx := context.Background()
	count, err := CopyContext(ctx, &dst, r)
	if err != nil {
		t.Fatal(err)
	}
	if count != 8 {
		t.Fatal("not the expected number of bytes")
	}
	if dst.String() != "deadbeef" {
		t.Fatal("not the expected content")
	}
}

func TestCopyContextWithFailure(t *testing.T) {
	expected := errors.New("mocked error")
	r := &MockableReader{
		MockRead: func(b []byte) (int, error) {
			return 0, expected
		},
	}
	var dst bytes.Buffer
	ctx := context.Background()
	count, err := CopyContext(ctx, &dst, r)
	if !errors.Is(err, expected) {
		t.Fatal("not the error we expected", err)
	}
	if count != 0 {
		t.Fatal("not the expected number of bytes")
	}
}

func TestCopyContextWithCancelledContext(t *testing.T) {
	r := &MockableReader{
		MockRead: func(b []byte) (int, error) {
			select {} // block forever
		},
	}
	var dst bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // fail immediately
	count, err := CopyContext(ctx, &dst, r)
	if !errors.Is(err, context.Canceled) {
		t.Fatal("not the error we expected", err)
	}
	if count != 0 {
		t.Fatal("not the expected number of bytes")
	}
}
