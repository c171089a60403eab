package wire

import "errors"

// MethodType distinguishes a call that expects a response (FUNCTION) from
// one that does not (NOTIFICATION).
type MethodType uint8

const (
	FunctionType     MethodType = 1
	NotificationType MethodType = 2
)

// Request is a parsed request frame (§3).
type Request struct {
	MethodType MethodType
	TxID       [4]byte
	Method     string
	Params     []Val
}

// Response is a parsed response frame (§3). Result is non-nil if and only
// if ErrorCode == OK.
type Response struct {
	MethodType MethodType
	TxID       [4]byte
	Method     string
	ErrorCode  ErrorCode
	Result     *Val
}

// frameTotalLen computes the self-inclusive total frame length for a frame
// whose body (everything after method_type and the size field) is
// contentSize bytes. The size field's own width depends on the final
// value, so the 1-byte case is tried first and only promoted to the
// 9-byte extended encoding if it does not fit.
func frameTotalLen(contentSize int) int {
	total := 1 + 1 + contentSize
	if total < 0xFF {
		return total
	}
	return 1 + 1 + sizeExtWidth + contentSize
}

// EncodeRequest serializes req into a self-describing frame.
func EncodeRequest(req *Request) ([]byte, error) {
	if req.MethodType != FunctionType && req.MethodType != NotificationType {
		return nil, ErrInvalidMethodType
	}
	if len(req.Method) == 0 || len(req.Method) > MaxMethodNameLen {
		return nil, ErrInvalidMethodName
	}
	if len(req.Params) > MaxParameters {
		return nil, ErrTooManyParameters
	}

	contentSize := 4 + 1 + len(req.Method)
	for _, p := range req.Params {
		sz, err := encodedSize(p)
		if err != nil {
			return nil, err
		}
		contentSize += sz
	}

	total := frameTotalLen(contentSize)
	dst := make([]byte, 0, total)
	dst = append(dst, byte(req.MethodType))
	dst = EncodeSize(dst, uint64(total))
	dst = append(dst, req.TxID[:]...)
	dst = append(dst, byte(len(req.Method)))
	dst = append(dst, req.Method...)
	for _, p := range req.Params {
		var err error
		dst, err = encodeVal(dst, p)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

// ParseRequest parses a single request frame from the front of data. It
// returns the parsed request and the number of bytes the frame occupied.
// data must contain at least as many bytes as GetPackageSize reports.
func ParseRequest(data []byte) (*Request, int, error) {
	if len(data) < 1 {
		return nil, 0, ErrPackageBroken
	}
	mt := MethodType(data[0])
	if mt != FunctionType && mt != NotificationType {
		return nil, 0, ErrInvalidMethodType
	}
	total, szN, err := DecodeSize(data[1:])
	if err != nil {
		return nil, 0, ErrPackageBroken
	}
	if uint64(len(data)) < total {
		return nil, 0, ErrPackageBroken
	}
	frame := data[:total]
	off := 1 + szN

	if off+4 > len(frame) {
		return nil, 0, ErrPackageBroken
	}
	var txid [4]byte
	copy(txid[:], frame[off:off+4])
	off += 4

	if off >= len(frame) {
		return nil, 0, ErrPackageBroken
	}
	nameLen := int(frame[off])
	off++
	if nameLen == 0 || nameLen > MaxMethodNameLen {
		return nil, 0, ErrInvalidMethodName
	}
	if off+nameLen > len(frame) {
		return nil, 0, ErrPackageBroken
	}
	name := string(frame[off : off+nameLen])
	off += nameLen

	var params []Val
	for off < len(frame) {
		if len(params) >= MaxParameters {
			return nil, 0, ErrTooManyParameters
		}
		v, n, err := decodeVal(frame[off:])
		if err != nil {
			return nil, 0, err
		}
		params = append(params, v)
		off += n
	}

	return &Request{MethodType: mt, TxID: txid, Method: name, Params: params}, int(total), nil
}

// EncodeResponse serializes resp into a self-describing frame.
func EncodeResponse(resp *Response) ([]byte, error) {
	if resp.MethodType != FunctionType {
		return nil, ErrInvalidMethodType
	}
	if len(resp.Method) == 0 || len(resp.Method) > MaxMethodNameLen {
		return nil, ErrInvalidMethodName
	}
	if resp.ErrorCode == OK && resp.Result == nil {
		return nil, errors.New("wire: OK response missing result")
	}
	if resp.ErrorCode != OK && resp.Result != nil {
		return nil, errors.New("wire: non-OK response carries a result")
	}

	contentSize := 4 + 1 + len(resp.Method) + VarintLen(int32(resp.ErrorCode))
	if resp.ErrorCode == OK {
		sz, err := encodedSize(*resp.Result)
		if err != nil {
			return nil, err
		}
		contentSize += sz
	}

	total := frameTotalLen(contentSize)
	dst := make([]byte, 0, total)
	dst = append(dst, byte(resp.MethodType))
	dst = EncodeSize(dst, uint64(total))
	dst = append(dst, resp.TxID[:]...)
	dst = append(dst, byte(len(resp.Method)))
	dst = append(dst, resp.Method...)
	dst = EncodeVarint(dst, int32(resp.ErrorCode))
	if resp.ErrorCode == OK {
		var err error
		dst, err = encodeVal(dst, *resp.Result)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

// ParseResponse parses a single response frame from the front of data. It
// returns the parsed response and the number of bytes the frame occupied.
func ParseResponse(data []byte) (*Response, int, error) {
	if len(data) < 1 {
		return nil, 0, ErrPackageBroken
	}
	mt := MethodType(data[0])
	if mt != FunctionType {
		return nil, 0, ErrInvalidMethodType
	}
	total, szN, err := DecodeSize(data[1:])
	if err != nil {
		return nil, 0, ErrPackageBroken
	}
	if uint64(len(data)) < total {
		return nil, 0, ErrPackageBroken
	}
	frame := data[:total]
	off := 1 + szN

	if off+4 > len(frame) {
		return nil, 0, ErrPackageBroken
	}
	var txid [4]byte
	copy(txid[:], frame[off:off+4])
	off += 4

	if off >= len(frame) {
		return nil, 0, ErrPackageBroken
	}
	nameLen := int(frame[off])
	off++
	if nameLen == 0 || nameLen > MaxMethodNameLen {
		return nil, 0, ErrInvalidMethodName
	}
	if off+nameLen > len(frame) {
		return nil, 0, ErrPackageBroken
	}
	name := string(frame[off : off+nameLen])
	off += nameLen

	ec, n, err := DecodeVarint(frame[off:])
	if err != nil {
		return nil, 0, ErrPackageBroken
	}
	off += n

	resp := &Response{MethodType: mt, TxID: txid, Method: name, ErrorCode: ErrorCode(ec)}
	if resp.ErrorCode == OK {
		v, n2, err := decodeVal(frame[off:])
		if err != nil {
			return nil, 0, err
		}
		off += n2
		resp.Result = &v
	}
	if off != len(frame) {
		return nil, 0, ErrTrailingBytes
	}
	return resp, int(total), nil
}

// GetPackageSize inspects the leading bytes of a stream and returns the
// total byte count of the frame starting at data[0]. It returns
// ErrNeedMoreData when fewer bytes are available than are needed to
// determine the length.
func GetPackageSize(data []byte) (int, error) {
	if len(data) < 2 {
		return 0, ErrNeedMoreData
	}
	total, _, err := DecodeSize(data[1:])
	if err != nil {
		if errors.Is(err, ErrVarintTruncated) {
			return 0, ErrNeedMoreData
		}
		return 0, err
	}
	return int(total), nil
}
