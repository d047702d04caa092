package metrics

import (
	"net"
)

type packetSender interface {
	SendPacket(packet []byte) error
	Close()
}

type sender struct {
	address string
	conn    net.Conn
}

func newSender(address string) *sender {
	return &sender{address: address}
}

func (s *sender) SendPacket(packet []byte) error {
	if s.conn == nil {
		conn, err := net.Dial("unixgram", s.address)
		if err != nil {
			return err
		}
		s.conn = conn
	}
	if _, err := s.conn.Write(packet); err != nil {
		_ = s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

func (s *sender) Close() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}
