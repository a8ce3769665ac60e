package thin

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/yanglinqiang/ignite"
	"github.com/yanglinqiang/ignite/internal/bitset"
	"github.com/yanglinqiang/ignite/logger"
)

const (
	errorFlag                   = 1
	affinityTopologyChangedFlag = 1 << 1
	notificationFlag            = 1 << 2
)

const handshakeRequestId int64 = -1

type tcpChannel struct {
	addr            string
	socket          net.Conn
	idGen           atomic.Int64
	protocolCtx     atomic.Pointer[ProtocolContext]
	topVer          atomic.Int64
	pendingCh       chan int64
	pendingRequests sync.Map
	doneCh          chan struct{}
	serverId        *uuid.UUID
	closed          atomic.Bool
	closeErr        atomic.Value
	closeWg         sync.WaitGroup
	clientCfg       *clientConfiguration
	log             *logger.Logger
}

type pendingRequest struct {
	id           int64
	requestData  []byte
	responseData []byte
	err          error
	completed    atomic.Bool
	doneCh       chan struct{}
}

// complete stores the outcome of the request once, later calls report false and change nothing.
func (req *pendingRequest) complete(data []byte, err error) bool {
	if req == nil || !req.completed.CompareAndSwap(false, true) {
		return false
	}
	req.responseData = data
	req.err = err
	close(req.doneCh)
	return true
}

// done reports whether the outcome of the request is available.
func (req *pendingRequest) done() bool {
	select {
	case <-req.doneCh:
		return true
	default:
		return false
	}
}

func responseId(packet []byte) (int64, bool) {
	if len(packet) >= longBytes {
		res := binary.LittleEndian.Uint64(packet)
		return int64(res), true
	}
	return 0, false
}

func newRequest(id int64, opCode int16, requestWriter func(output BinaryOutputStream) error) (*pendingRequest, error) {
	reqOutput := NewBinaryOutputStream(64)
	reqOutput.WriteInt32(0)
	if id != handshakeRequestId {
		reqOutput.WriteInt16(opCode)
		reqOutput.WriteInt64(id)
	}
	if err := requestWriter(reqOutput); err != nil {
		return nil, err
	}
	currPosition := reqOutput.Position()
	reqOutput.SetPosition(0)
	reqOutput.WriteInt32(int32(currPosition - intBytes))
	reqOutput.SetPosition(currPosition)
	return &pendingRequest{
		id:          id,
		requestData: reqOutput.Data(),
		doneCh:      make(chan struct{}),
	}, nil
}

func (ch *tcpChannel) protocolContext() *ProtocolContext {
	return ch.protocolCtx.Load()
}

func (ch *tcpChannel) send(ctx context.Context, opCode int16, requestWriter func(output BinaryOutputStream) error, responseReader func(input BinaryInputStream, err error)) {
	reqId := ch.requestId()
	ch.log.Trace(func() string {
		return fmt.Sprintf("start performing request[id=%d, op=%d] on %s", reqId, opCode, ch)
	})
	responseReaderFacade := responseReader
	if ch.log.Level() <= logger.TraceLevel {
		responseReaderFacade = func(input BinaryInputStream, err error) {
			ch.log.Trace(func() string {
				if err != nil {
					return fmt.Sprintf("request[id=%d, op=%d] failed on %s: %s", reqId, opCode, ch, err.Error())
				}
				return fmt.Sprintf("request[id=%d, op=%d] succeeded on %s", reqId, opCode, ch)
			})
			responseReader(input, err)
		}
	}
	ch.send0(ctx, reqId, opCode, requestWriter, responseReaderFacade)
}

func (ch *tcpChannel) send0(ctx context.Context, id int64, opCode int16, requestWriter func(output BinaryOutputStream) error, responseReader func(input BinaryInputStream, err error)) {
	if ch.closed.Load() {
		responseReader(nil, createClientConnectionError("channel is closed", nil))
		return
	}
	ctx, cancel := setContextDeadline(ctx, ch.clientCfg.requestTimeout)
	defer cancel()

	req, err := newRequest(id, opCode, requestWriter)
	if err != nil {
		responseReader(nil, err)
		return
	}

	ch.pendingRequests.Store(req.id, req)
	defer ch.pendingRequests.Delete(req.id)
	select {
	case ch.pendingCh <- req.id:
	case <-ctx.Done():
		responseReader(nil, ctx.Err())
		return
	case <-ch.doneCh:
		responseReader(nil, ch.processCloseError("connection closed"))
		return
	}

	select {
	case <-ctx.Done():
		responseReader(nil, ctx.Err())
		return
	case <-ch.doneCh:
		// a response delivered right before the close wins over the close
		if !req.done() {
			responseReader(nil, ch.processCloseError("connection closed"))
			return
		}
	case <-req.doneCh:
	}
	if req.err != nil {
		responseReader(nil, req.err)
		return
	}
	input := NewBinaryInputStream(req.responseData, 0)
	if req.id == handshakeRequestId {
		responseReader(input, nil)
		return
	}
	responseReader(input, ch.readResponseHeader(req.id, input))
}

// readResponseHeader consumes the response header. Since 1.4 it is a flags field, older
// versions send the status code directly.
func (ch *tcpChannel) readResponseHeader(reqId int64, input BinaryInputStream) error {
	if err := ensureAvailable(input, longBytes); err != nil {
		return &ClientProtocolError{ClientError{"broken response header: " + err.Error()}}
	}
	if resId := input.ReadInt64(); resId != reqId {
		return &ClientProtocolError{ClientError{fmt.Sprintf("unexpected response id %d, expected %d", resId, reqId)}}
	}
	failed := false
	var statusCode int32
	if ch.protocolContext().SupportsResponseFlags() {
		if err := ensureAvailable(input, shortBytes); err != nil {
			return &ClientProtocolError{ClientError{"broken response header: " + err.Error()}}
		}
		flags := input.ReadInt16()
		if checkFlag(flags, affinityTopologyChangedFlag) {
			if err := ensureAvailable(input, longBytes+intBytes); err != nil {
				return &ClientProtocolError{ClientError{"broken response header: " + err.Error()}}
			}
			ch.topVer.Store(input.ReadInt64())
			_ = input.ReadInt32() // minor topology version
		}
		if checkFlag(flags, errorFlag) {
			failed = true
			if err := ensureAvailable(input, intBytes); err != nil {
				return &ClientProtocolError{ClientError{"broken response header: " + err.Error()}}
			}
			statusCode = input.ReadInt32()
		}
	} else {
		if err := ensureAvailable(input, intBytes); err != nil {
			return &ClientProtocolError{ClientError{"broken response header: " + err.Error()}}
		}
		statusCode = input.ReadInt32()
		failed = statusCode != int32(ignite.Success)
	}
	if !failed {
		return nil
	}
	errMsg, err := unmarshalString(input)
	if err != nil {
		return createClientConnectionError("broken output from server", err)
	}
	return &ClientServerError{ClientError{Message: errMsg}, ignite.ErrorCode(statusCode)}
}

func (ch *tcpChannel) processCloseError(defaultMsg string) error {
	closeErr := ch.closeErr.Load()
	if closeErr == nil {
		return createClientConnectionError(defaultMsg, nil)
	}
	return createClientConnectionError("connection error", closeErr.(error))
}

func (ch *tcpChannel) beginClose(err error) {
	if !ch.closed.CompareAndSwap(false, true) {
		return
	}
	if err != nil {
		ch.log.Errorf("%s closed with error: %v", ch, err)
		ch.closeErr.Store(err)
	}
	ch.pendingRequests.Range(func(id, val any) bool {
		req, ok := val.(*pendingRequest)
		if !ok {
			return true
		}
		req.complete(nil, createClientConnectionError("connection closed", err))
		ch.pendingRequests.Delete(id)
		return true
	})
	close(ch.doneCh)
	_ = ch.socket.Close()
}

func (ch *tcpChannel) close(ctx context.Context) {
	ch.beginClose(nil)

	ctx, cancel := setContextDeadline(ctx, ch.clientCfg.requestTimeout)
	defer cancel()

	if _, deadlineSet := ctx.Deadline(); !deadlineSet {
		ch.closeWg.Wait()
		return
	}
	waitCh := make(chan struct{})
	go func() {
		ch.closeWg.Wait()
		close(waitCh)
	}()
	select {
	case <-ctx.Done():
		ch.log.Warnf("waiting for channel close timed out")
	case <-waitCh:
	}
}

func (ch *tcpChannel) isClosed() bool {
	return ch.closed.Load()
}

func (ch *tcpChannel) String() string {
	var sb strings.Builder
	sb.WriteString("tcpChannel[addr=")
	sb.WriteString(ch.addr)
	if protoCtx := ch.protocolContext(); protoCtx != nil {
		sb.WriteString(", protoVer=")
		sb.WriteString(protoCtx.Version().String())
	}
	if ch.serverId != nil {
		sb.WriteString(", serverId=")
		sb.WriteString(ch.serverId.String())
	}
	sb.WriteRune(']')
	return sb.String()
}

func (ch *tcpChannel) writeLoop() {
	defer ch.closeWg.Done()
	writer := bufio.NewWriterSize(ch.socket, writeBufferSize)
	for {
		select {
		case id, ok := <-ch.pendingCh:
			if !ok {
				return
			}
			req, ok := ch.pendingRequests.Load(id)
			if !ok {
				continue
			}
			_, err := writer.Write(req.(*pendingRequest).requestData)
			if err == nil && len(ch.pendingCh) == 0 {
				err = writer.Flush()
			}
			if err != nil {
				ch.beginClose(err)
				return
			}
		case <-ch.doneCh:
			return
		}
	}
}

const (
	messageBufferSize = 128 * 1024
	writeBufferSize   = 16 * 1024
)

func (ch *tcpChannel) readLoop() {
	var err error
	var n int
	defer func() {
		if r := recover(); r != nil {
			ch.beginClose(fmt.Errorf("failed to process data: %v", r))
		}
		ch.closeWg.Done()
	}()

	buf := make([]byte, messageBufferSize)
	packetAcc := newPacketAccumulator()
LOOP:
	for {
		if ch.closed.Load() {
			break
		}
		if err = ch.socket.SetReadDeadline(time.Now().Add(1 * time.Second)); err != nil {
			break
		}
		n, err = ch.socket.Read(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				err = nil
				continue
			}
			break
		}
		if n <= 0 {
			continue
		}
		packetAcc.append(buf[:n])
		for {
			var data []byte
			data, err = packetAcc.data()
			if err != nil {
				break LOOP
			}
			if data == nil {
				continue LOOP
			}
			id := handshakeRequestId
			if ch.protocolContext() != nil {
				var ok bool
				if id, ok = responseId(data); !ok {
					err = createClientConnectionError("failed to parse response id", nil)
					break LOOP
				}
			}
			val, ok := ch.pendingRequests.Load(id)
			if !ok {
				continue
			}
			req, ok := val.(*pendingRequest)
			if !ok {
				err = createClientConnectionError("invalid data in pending requests", nil)
				break LOOP
			}
			req.complete(data, nil)
		}
	}
	ch.beginClose(err)
}

type packetAccumulator struct {
	buf         *bytes.Buffer
	currentSize int32
}

func newPacketAccumulator() *packetAccumulator {
	return &packetAccumulator{
		buf: bytes.NewBuffer(make([]byte, 0, messageBufferSize)),
	}
}

func (pa *packetAccumulator) append(buf []byte) {
	pa.buf.Write(buf)
}

// data returns the next complete packet without its length prefix, nil if more bytes are needed.
func (pa *packetAccumulator) data() ([]byte, error) {
	if pa.currentSize <= 0 {
		if pa.buf.Len() < intBytes {
			return nil, nil
		}
		size := int32(binary.LittleEndian.Uint32(pa.buf.Next(intBytes)))
		if size < byteBytes {
			return nil, &ClientProtocolError{ClientError{fmt.Sprintf("invalid packet size %d", size)}}
		}
		pa.currentSize = size
	}
	size := int(pa.currentSize)
	if pa.buf.Len() < size {
		return nil, nil
	}
	result := make([]byte, size)
	copy(result, pa.buf.Next(size))
	if pa.buf.Len() == 0 && pa.buf.Cap() > messageBufferSize {
		pa.buf = bytes.NewBuffer(make([]byte, 0, messageBufferSize))
	}
	pa.currentSize = 0
	return result, nil
}

func (ch *tcpChannel) handshake(ctx context.Context, cliProtoCtx *ProtocolContext) error {
	cliProtoCtx = cliProtoCtx.clone()
	for {
		ch.log.Debug(func() string {
			return fmt.Sprintf("connecting to %s, performing handshake with version=%s", ch, cliProtoCtx.Version())
		})
		srvCtx, err := ch.handshakeRound(ctx, cliProtoCtx, ch.clientCfg)
		if err != nil {
			return err
		}
		if srvCtx == nil {
			return nil
		}
		// Retry with the version proposed by the server.
		cliProtoCtx = srvCtx
	}
}

func (ch *tcpChannel) handshakeRound(ctx context.Context, cliProtoCtx *ProtocolContext, cliCfg *clientConfiguration) (*ProtocolContext, error) {
	var err error
	var srvProtoCtx *ProtocolContext
	writer := func(bw BinaryOutputStream) error {
		bw.WriteInt8(handshakeCode)
		cliProtoCtx.marshal(bw)
		if cliProtoCtx.SupportsAttributeFeature(UserAttributesFeature) {
			if len(cliCfg.attrs) == 0 {
				bw.WriteNull()
			} else {
				bw.WriteInt8(MapType)
				bw.WriteInt32(int32(len(cliCfg.attrs)))
				bw.WriteInt8(hashMapKind)
				for k, v := range cliCfg.attrs {
					marshalString(bw, k)
					marshalString(bw, v)
				}
			}
		}
		if cliProtoCtx.SupportsAuthorization() && len(cliCfg.user) > 0 {
			marshalString(bw, cliCfg.user)
			marshalString(bw, cliCfg.password)
		}
		return nil
	}
	reader := func(input BinaryInputStream, err0 error) {
		if err0 != nil {
			err = err0
			return
		}
		if err = ensureAvailable(input, boolBytes); err != nil {
			err = createClientConnectionError("broken handshake response", err)
			return
		}
		if input.ReadBool() {
			if cliProtoCtx.SupportsBitmapFeatures() {
				var bitMaskBytes []byte
				if bitMaskBytes, err = unmarshalByteArray(input); err != nil {
					err = fmt.Errorf("broken output from server: %w", err)
					return
				}
				if bitMaskBytes != nil {
					cliProtoCtx.updateAttributeFeatures(bitset.FromBytes(bitMaskBytes))
				}
			}
			if cliProtoCtx.SupportsPartitionAwareness() {
				var serverId uuid.UUID
				if serverId, err = unmarshalUuid(input); err != nil {
					err = fmt.Errorf("broken output from server: %w", err)
					return
				}
				ch.serverId = &serverId
			}
			ch.protocolCtx.Store(cliProtoCtx)
			return
		}
		if err = ensureAvailable(input, 3*shortBytes); err != nil {
			err = createClientConnectionError("broken handshake response", err)
			return
		}
		srvProtoCtx = NewProtocolContext(
			ProtocolVersion{Major: input.ReadInt16(), Minor: input.ReadInt16(), Patch: input.ReadInt16()},
		)
		var errMsg string
		if errMsg, err = unmarshalString(input); err != nil {
			err = fmt.Errorf("broken output from server: %w", err)
			return
		}
		errCode := ignite.Failed
		if input.Available() >= intBytes {
			errCode = ignite.ErrorCode(input.ReadUInt32())
		}
		cliVersion := cliProtoCtx.Version()
		switch {
		case errCode == ignite.AuthFailed:
			err = &ClientAuthenticationError{ClientError{errMsg}}
		case cliVersion.Compare(srvProtoCtx.Version()) == 0:
			err = &ClientProtocolError{ClientError{errMsg}}
		case !isSupportedVersion(srvProtoCtx.Version()) || (!srvProtoCtx.SupportsAuthorization() && len(cliCfg.user) > 0):
			err = &ClientProtocolError{ClientError{
				fmt.Sprintf("protocol version mismatch: client %v / server %v. Server details: %s",
					cliVersion, srvProtoCtx.Version(), errMsg),
			}}
		}
	}
	ch.send0(ctx, handshakeRequestId, 0, writer, reader)
	if err != nil {
		return nil, err
	}
	return srvProtoCtx, nil
}

func checkFlag(flags int16, flag int16) bool {
	return flags&flag != 0
}

func (ch *tcpChannel) requestId() int64 {
	return ch.idGen.Add(1)
}

func setContextDeadline(ctx context.Context, defaultTimeout time.Duration) (context.Context, context.CancelFunc) {
	retCancel := func() {}
	if ctx == nil {
		ctx = context.Background()
	}
	if _, deadlineSet := ctx.Deadline(); !deadlineSet && defaultTimeout > 0 {
		ctx, retCancel = context.WithTimeout(ctx, defaultTimeout)
	}
	return ctx, retCancel
}

func createTcpChannel(ctx context.Context, addr string, cfg *clientConfiguration) (*tcpChannel, error) {
	ctx, cancel := setContextDeadline(ctx, cfg.requestTimeout)
	defer cancel()
	if cfg.protocolContext == nil {
		return nil, &ClientProtocolError{ClientError{"protocol context is not set"}}
	}
	if version := cfg.protocolContext.Version(); !isSupportedVersion(version) {
		return nil, &ClientProtocolError{ClientError{fmt.Sprintf("version %s is not supported", version)}}
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, createClientConnectionError(fmt.Sprintf("failed to connect to %s", addr), err)
	}
	if cfg.tlsConfigSupplier != nil {
		var tlsCfg *tls.Config
		if tlsCfg, err = cfg.tlsConfigSupplier(); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to obtain tls config: %w", err)
		}
		if tlsCfg.ServerName == "" && !tlsCfg.InsecureSkipVerify {
			tlsCfg = tlsCfg.Clone()
			if host, _, err0 := net.SplitHostPort(addr); err0 == nil {
				tlsCfg.ServerName = host
			}
		}
		tlsCon := tls.Client(conn, tlsCfg)
		if err = tlsCon.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, createClientConnectionError("tls handshake failed", err)
		}
		conn = tlsCon
	}
	ch := &tcpChannel{
		addr:      addr,
		socket:    conn,
		pendingCh: make(chan int64, 1024),
		doneCh:    make(chan struct{}),
		clientCfg: cfg,
		log:       cfg.logger,
	}
	ch.idGen.Store(1)
	ch.closeWg.Add(2)
	go ch.writeLoop()
	go ch.readLoop()
	if err = ch.handshake(ctx, cfg.protocolContext); err != nil {
		ch.close(context.Background())
		return nil, err
	}
	return ch, nil
}
