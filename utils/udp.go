package utils

import (
	"net"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	udpRecvQSize   = 1024
	udpRecvTimeout = 2 * time.Second
	udpSendQSize   = 1024
)

type UDPPacket struct {
	Data []byte
	Addr *net.UDPAddr
}

// UDPServer is a datagram transport; it never blocks the caller, full queues drop packets
type UDPServer interface {
	GetRecvChannel() <-chan *UDPPacket
	Send(packet *UDPPacket)
	LocalAddr() *net.UDPAddr
	Start() error
	Stop()
}

// NewUDPServer returns a server bound to ip:port once started; port 0 picks an ephemeral port.
// Datagrams longer than maxPacket are dropped on both directions.
func NewUDPServer(ip net.IP, port int, maxPacket int) UDPServer {
	return &udpServer{
		ip:        ip,
		port:      port,
		maxPacket: maxPacket,
		recvQ:     make(chan *UDPPacket, udpRecvQSize),
		sendQ:     make(chan *UDPPacket, udpSendQSize),
		lm:        NewLoop(2),
	}
}

type udpServer struct {
	ip        net.IP
	port      int
	maxPacket int
	conn      *net.UDPConn
	recvQ     chan *UDPPacket
	sendQ     chan *UDPPacket
	lm        *LoopMode
}

func (u *udpServer) GetRecvChannel() <-chan *UDPPacket {
	return u.recvQ
}

func (u *udpServer) LocalAddr() *net.UDPAddr {
	if u.conn == nil {
		return nil
	}
	return u.conn.LocalAddr().(*net.UDPAddr)
}

func (u *udpServer) Send(packet *UDPPacket) {
	if len(packet.Data) > u.maxPacket {
		logger.Warn("drop oversize packet to %v, size:%d\n", packet.Addr, len(packet.Data))
		return
	}

	select {
	case u.sendQ <- packet:
	default:
		logger.Warnln("udp server sendQ is full, drop packet")
	}
}

func (u *udpServer) Start() error {
	udpAddr := &net.UDPAddr{
		IP:   u.ip,
		Port: u.port,
	}
	var err error

	if u.conn, err = net.ListenUDP("udp", udpAddr); err != nil {
		return errors.Wrapf(err, "listen udp %v", udpAddr)
	}

	go u.recv()
	go u.send()
	u.lm.StartWorking()
	return nil
}

func (u *udpServer) Stop() {
	if u.lm.Stop() {
		u.conn.Close()
	}
}

func (u *udpServer) recv() {
	u.lm.Add()
	defer u.lm.Done()

	for {
		select {
		case <-u.lm.D:
			return
		default:
			// one spare byte tells an oversize datagram apart from a full one
			packBuf := make([]byte, u.maxPacket+1)
			u.conn.SetReadDeadline(time.Now().Add(udpRecvTimeout))
			n, addr, err := u.conn.ReadFromUDP(packBuf)

			if err != nil {
				if err, ok := err.(net.Error); ok && err.Timeout() {
					break
				}
				logger.Warn("udp server read err:%v\n", err)
				break
			}
			if n > u.maxPacket {
				logger.Debug("drop oversize packet from %v\n", addr)
				break
			}

			pkt := &UDPPacket{
				Data: packBuf[:n],
				Addr: addr,
			}

			select {
			case u.recvQ <- pkt:
			default:
				logger.Warnln("udp server recvQ is full, drop packet")
			}
		}
	}
}

func (u *udpServer) send() {
	u.lm.Add()
	defer u.lm.Done()

	for {
		select {
		case <-u.lm.D:
			return
		case packet := <-u.sendQ:
			_, err := u.conn.WriteToUDP(packet.Data, packet.Addr)
			if err != nil {
				logger.Warn("udp server send to %v failed:%v, size:%d\n",
					packet.Addr, err, len(packet.Data))
			}
		}
	}
}
