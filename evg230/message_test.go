package evg230

import "testing"

func TestMessageEncodeDecodeRoundTrip(t *testing.T) {
	m := message{access: accessWrite, status: 0, data: 0x1234, address: registerBase + regRFControl, reference: 0}
	buf := m.encode()
	if len(buf) != messageLen {
		t.Fatalf("encode produced %d bytes, want %d", len(buf), messageLen)
	}
	got := decodeMessage(buf[:])
	if got != m {
		t.Fatalf("decode(encode(m)) = %+v, want %+v", got, m)
	}
}

func TestReadRequestFields(t *testing.T) {
	req := readRequest(regControl)
	if req.access != accessRead {
		t.Errorf("access = %d, want accessRead", req.access)
	}
	if req.address != registerBase+regControl {
		t.Errorf("address = 0x%x, want 0x%x", req.address, registerBase+regControl)
	}
	if req.data != 0 {
		t.Errorf("data = 0x%x, want 0", req.data)
	}
}

func TestWriteRequestFields(t *testing.T) {
	req := writeRequest(regACEnable, 0x00FF)
	if req.access != accessWrite {
		t.Errorf("access = %d, want accessWrite", req.access)
	}
	if req.address != registerBase+regACEnable {
		t.Errorf("address = 0x%x, want 0x%x", req.address, registerBase+regACEnable)
	}
	if req.data != 0x00FF {
		t.Errorf("data = 0x%x, want 0x00ff", req.data)
	}
}

func TestEncodeIsNetworkByteOrder(t *testing.T) {
	m := message{access: 1, status: 0, data: 0x0102, address: 0x80000040, reference: 0}
	buf := m.encode()
	want := [messageLen]byte{1, 0, 0x01, 0x02, 0x80, 0x00, 0x00, 0x40, 0, 0, 0, 0}
	if buf != want {
		t.Fatalf("encode() = %#v, want %#v", buf, want)
	}
}
