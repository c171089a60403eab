package wire

import (
	"bytes"
	"testing"
)

func TestRequestRoundTrip(t *testing.T) {
	req := &Request{
		MethodType: FunctionType,
		TxID:       [4]byte{1, 2, 3, 4},
		Method:     "Add",
		Params: []Val{
			NewUintVal(1),
			NewUintVal(3),
		},
	}
	enc, err := EncodeRequest(req)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}

	size, err := GetPackageSize(enc)
	if err != nil {
		t.Fatalf("GetPackageSize: %v", err)
	}
	if size != len(enc) {
		t.Fatalf("GetPackageSize = %d, want %d", size, len(enc))
	}

	got, n, err := ParseRequest(enc)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if n != len(enc) {
		t.Fatalf("ParseRequest consumed %d bytes, want %d", n, len(enc))
	}
	if got.MethodType != req.MethodType || got.Method != req.Method || got.TxID != req.TxID {
		t.Fatalf("round trip header mismatch: got %+v", got)
	}
	if len(got.Params) != len(req.Params) {
		t.Fatalf("param count mismatch: got %d want %d", len(got.Params), len(req.Params))
	}
	for i := range req.Params {
		if !got.Params[i].Equal(req.Params[i]) {
			t.Fatalf("param %d mismatch: got %+v want %+v", i, got.Params[i], req.Params[i])
		}
	}
}

func TestRequestRoundTripVarcharAndInt(t *testing.T) {
	req := &Request{
		MethodType: NotificationType,
		TxID:       [4]byte{0xde, 0xad, 0xbe, 0xef},
		Method:     "Log",
		Params: []Val{
			NewIntVal(-42),
			NewVarcharVal([]byte("a long varchar value exceeding sixteen bytes")),
		},
	}
	enc, err := EncodeRequest(req)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	got, n, err := ParseRequest(enc)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if n != len(enc) {
		t.Fatalf("consumed %d, want %d", n, len(enc))
	}
	if !bytes.Equal(got.Params[1].Varchar.Bytes(), req.Params[1].Varchar.Bytes()) {
		t.Fatalf("varchar mismatch: got %q want %q", got.Params[1].Varchar.Bytes(), req.Params[1].Varchar.Bytes())
	}
	if got.Params[0].Int != -42 {
		t.Fatalf("int mismatch: got %d", got.Params[0].Int)
	}
}

func TestRequestTooManyParameters(t *testing.T) {
	params := make([]Val, MaxParameters+1)
	for i := range params {
		params[i] = NewUintVal(uint32(i))
	}
	req := &Request{MethodType: FunctionType, Method: "Many", Params: params}
	if _, err := EncodeRequest(req); err != ErrTooManyParameters {
		t.Fatalf("expected ErrTooManyParameters, got %v", err)
	}
}

func TestRequestInvalidMethodName(t *testing.T) {
	req := &Request{MethodType: FunctionType, Method: ""}
	if _, err := EncodeRequest(req); err != ErrInvalidMethodName {
		t.Fatalf("expected ErrInvalidMethodName for empty name, got %v", err)
	}

	req.Method = string(make([]byte, MaxMethodNameLen+1))
	if _, err := EncodeRequest(req); err != ErrInvalidMethodName {
		t.Fatalf("expected ErrInvalidMethodName for oversized name, got %v", err)
	}
}

func TestResponseRoundTripOK(t *testing.T) {
	result := NewUintVal(4)
	resp := &Response{
		MethodType: FunctionType,
		TxID:       [4]byte{9, 9, 9, 9},
		Method:     "Add",
		ErrorCode:  OK,
		Result:     &result,
	}
	enc, err := EncodeResponse(resp)
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}
	got, n, err := ParseResponse(enc)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if n != len(enc) {
		t.Fatalf("consumed %d, want %d", n, len(enc))
	}
	if got.ErrorCode != OK || got.Result == nil || !got.Result.Equal(result) {
		t.Fatalf("unexpected response: %+v", got)
	}
}

func TestResponseRoundTripError(t *testing.T) {
	resp := &Response{
		MethodType: FunctionType,
		TxID:       [4]byte{1, 1, 1, 1},
		Method:     "Nope",
		ErrorCode:  FunctionNotFound,
	}
	enc, err := EncodeResponse(resp)
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}
	got, _, err := ParseResponse(enc)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if got.ErrorCode != FunctionNotFound || got.Result != nil {
		t.Fatalf("unexpected response: %+v", got)
	}
}

func TestEncodeResponseRejectsMismatchedResult(t *testing.T) {
	if _, err := EncodeResponse(&Response{MethodType: FunctionType, Method: "x", ErrorCode: OK}); err == nil {
		t.Fatal("expected error for OK response with nil result")
	}
	result := NewUintVal(1)
	if _, err := EncodeResponse(&Response{MethodType: FunctionType, Method: "x", ErrorCode: FunctionNotFound, Result: &result}); err == nil {
		t.Fatal("expected error for non-OK response carrying a result")
	}
}

func TestGetPackageSizeNeedsMoreData(t *testing.T) {
	if _, err := GetPackageSize(nil); err != ErrNeedMoreData {
		t.Fatalf("expected ErrNeedMoreData for empty input, got %v", err)
	}
	if _, err := GetPackageSize([]byte{1}); err != ErrNeedMoreData {
		t.Fatalf("expected ErrNeedMoreData for 1-byte input, got %v", err)
	}
}

func TestGetPackageSizeLargeFrame(t *testing.T) {
	// Force the extended size encoding by using a parameter list long
	// enough to push the frame past 254 bytes.
	params := make([]Val, MaxParameters)
	for i := range params {
		params[i] = NewVarcharVal(bytes.Repeat([]byte{'x'}, 20))
	}
	req := &Request{MethodType: FunctionType, Method: "Big", Params: params}
	enc, err := EncodeRequest(req)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	if len(enc) < 0xFF {
		t.Fatalf("expected a frame requiring extended size encoding, got %d bytes", len(enc))
	}
	size, err := GetPackageSize(enc)
	if err != nil {
		t.Fatalf("GetPackageSize: %v", err)
	}
	if size != len(enc) {
		t.Fatalf("GetPackageSize = %d, want %d", size, len(enc))
	}
}
