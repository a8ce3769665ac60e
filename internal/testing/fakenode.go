package testing

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/yanglinqiang/ignite/internal"
)

// Status codes answered by the fake node.
const (
	statusSuccess            int32 = 0
	statusFailed             int32 = 1
	statusInvalidOpCode      int32 = 2
	statusCacheDoesNotExists int32 = 1000
	statusCacheExists        int32 = 1001
	statusTxNotFound         int32 = 1021
	statusAuthFailed         int32 = 2000
)

const (
	typeNull      int8 = 101
	typeString    int8 = 9
	typeByteArray int8 = 12
	typeMap       int8 = 25
	typeUuid      int8 = 10
)

const (
	flagTransactional uint8 = 0x02
	flagExpiryPolicy  uint8 = 0x04
)

// Cluster is the shared state of fake nodes. Nodes started from the same cluster see the same
// caches, so a client can fail over between them.
type Cluster struct {
	mux     sync.Mutex
	caches  map[int32]*fakeCache
	txs     map[int32]*fakeTx
	txIdGen int32
}

type fakeCache struct {
	name    string
	entries map[string]*fakeEntry
}

type fakeEntry struct {
	value    []byte
	expireAt time.Time
}

func (e *fakeEntry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && !now.Before(e.expireAt)
}

type undoKey struct {
	cacheId int32
	key     string
}

type fakeTx struct {
	id   int32
	conn *nodeConn
	undo map[undoKey]*fakeEntry
	// order keeps restore deterministic
	order []undoKey
}

func NewCluster() *Cluster {
	return &Cluster{
		caches: make(map[int32]*fakeCache),
		txs:    make(map[int32]*fakeTx),
	}
}

// CacheNames returns the names of all caches of the cluster.
func (c *Cluster) CacheNames() []string {
	c.mux.Lock()
	defer c.mux.Unlock()
	names := make([]string, 0, len(c.caches))
	for _, cache := range c.caches {
		names = append(names, cache.name)
	}
	return names
}

// ActiveTxs returns the number of open transactions.
func (c *Cluster) ActiveTxs() int {
	c.mux.Lock()
	defer c.mux.Unlock()
	return len(c.txs)
}

// NodeOption configures a fake node.
type NodeOption func(n *FakeNode)

// WithVersion sets the highest protocol version the node accepts, 1.7.0 by default.
func WithVersion(major, minor, patch int16) NodeOption {
	return func(n *FakeNode) {
		n.version = [3]int16{major, minor, patch}
	}
}

// WithNodeCredentials makes the node require authentication.
func WithNodeCredentials(user, password string) NodeOption {
	return func(n *FakeNode) {
		n.user = user
		n.password = password
	}
}

// WithNodeTLS makes the node accept TLS connections only.
func WithNodeTLS(cfg *tls.Config) NodeOption {
	return func(n *FakeNode) {
		n.tlsCfg = cfg
	}
}

// FakeNode is an in-process server speaking the Ignite thin client protocol. It implements the
// cache, cache management and transaction operations over plain values.
type FakeNode struct {
	cluster  *Cluster
	id       uuid.UUID
	version  [3]int16
	user     string
	password string
	tlsCfg   *tls.Config
	ln       net.Listener
	connsMux sync.Mutex
	conns    map[*nodeConn]struct{}
	requests sync.Map // op code -> *atomic.Int64
	attrs    atomic.Value
	closed   atomic.Bool
	wg       sync.WaitGroup
}

// StartNode starts a node of the cluster listening on a random local port.
func (c *Cluster) StartNode(opts ...NodeOption) (*FakeNode, error) {
	n := &FakeNode{
		cluster: c,
		id:      uuid.New(),
		version: [3]int16{1, 7, 0},
		conns:   make(map[*nodeConn]struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	if n.tlsCfg != nil {
		ln = tls.NewListener(ln, n.tlsCfg)
	}
	n.ln = ln
	n.wg.Add(1)
	go n.acceptLoop()
	return n, nil
}

// Addr returns the host:port the node listens on.
func (n *FakeNode) Addr() string {
	return n.ln.Addr().String()
}

func (n *FakeNode) Id() uuid.UUID {
	return n.id
}

// Requests returns how many requests with the op code the node served.
func (n *FakeNode) Requests(opCode int16) int64 {
	if cnt, ok := n.requests.Load(opCode); ok {
		return cnt.(*atomic.Int64).Load()
	}
	return 0
}

// Attributes returns the user attributes sent by the last client that connected.
func (n *FakeNode) Attributes() map[string]string {
	attrs, _ := n.attrs.Load().(map[string]string)
	return attrs
}

// Connections returns the number of open client connections.
func (n *FakeNode) Connections() int {
	n.connsMux.Lock()
	defer n.connsMux.Unlock()
	return len(n.conns)
}

// Kill stops the node and drops every client connection.
func (n *FakeNode) Kill() error {
	if !n.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := n.ln.Close()
	n.connsMux.Lock()
	for conn := range n.conns {
		_ = conn.Close()
	}
	n.connsMux.Unlock()
	n.wg.Wait()
	return err
}

func (n *FakeNode) acceptLoop() {
	defer n.wg.Done()
	for {
		c, err := n.ln.Accept()
		if err != nil {
			return
		}
		conn := &nodeConn{Conn: c, node: n}
		n.connsMux.Lock()
		if n.closed.Load() {
			n.connsMux.Unlock()
			_ = c.Close()
			return
		}
		n.conns[conn] = struct{}{}
		n.connsMux.Unlock()
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			conn.serve()
			n.connsMux.Lock()
			delete(n.conns, conn)
			n.connsMux.Unlock()
			n.cluster.rollbackConn(conn)
		}()
	}
}

func (n *FakeNode) countRequest(opCode int16) {
	cnt, _ := n.requests.LoadOrStore(opCode, new(atomic.Int64))
	cnt.(*atomic.Int64).Add(1)
}

type nodeConn struct {
	net.Conn
	node    *FakeNode
	version [3]int16
}

func (c *nodeConn) atLeast(major, minor int16) bool {
	return c.version[0] > major || (c.version[0] == major && c.version[1] >= minor)
}

func (c *nodeConn) serve() {
	defer func() {
		_ = c.Close()
	}()
	r := bufio.NewReader(c.Conn)
	handshakeDone := false
	for {
		msg, err := readMessage(r)
		if err != nil {
			return
		}
		if !handshakeDone {
			// a rejected version leaves the connection open for another attempt
			if handshakeDone, err = c.handshake(msg); err != nil {
				return
			}
			continue
		}
		if err = c.handle(msg); err != nil {
			return
		}
	}
}

func readMessage(r io.Reader) ([]byte, error) {
	var sz int32
	if err := binary.Read(r, binary.LittleEndian, &sz); err != nil {
		return nil, err
	}
	if sz <= 0 {
		return nil, fmt.Errorf("invalid message size %d", sz)
	}
	msg := make([]byte, sz)
	if _, err := io.ReadFull(r, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (c *nodeConn) write(body []byte) error {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, int32(len(body)))
	buf.Write(body)
	_, err := c.Conn.Write(buf.Bytes())
	return err
}

var errAuthFailed = errors.New("authentication failed")

// handshake answers the handshake request. A false result means the client was rejected.
func (c *nodeConn) handshake(msg []byte) (bool, error) {
	in := &wireReader{buf: msg}
	if in.int8() != 1 {
		return false, errors.New("not a handshake")
	}
	c.version = [3]int16{in.int16(), in.int16(), in.int16()}
	in.int8() // client code
	var features []byte
	if c.atLeast(1, 7) {
		if t := in.int8(); t == typeByteArray {
			features = in.bytes(int(in.int32()))
		}
		if len(features) > 0 && features[0]&1 != 0 {
			c.node.attrs.Store(in.attributes())
		}
	}
	var user, password string
	if c.atLeast(1, 1) && in.remaining() > 0 {
		user, _ = in.string()
		password, _ = in.string()
	}
	if in.err != nil {
		return false, in.err
	}

	out := &wireWriter{}
	nodeVer := c.node.version
	if compareVersions(c.version, nodeVer) > 0 {
		out.bool(false)
		out.int16(nodeVer[0])
		out.int16(nodeVer[1])
		out.int16(nodeVer[2])
		out.string(fmt.Sprintf("unsupported version %d.%d.%d", c.version[0], c.version[1], c.version[2]))
		out.int32(statusFailed)
		return false, c.write(out.buf.Bytes())
	}
	if c.node.user != "" && (user != c.node.user || password != c.node.password) {
		out.bool(false)
		out.int16(c.version[0])
		out.int16(c.version[1])
		out.int16(c.version[2])
		out.string("authentication failed")
		out.int32(statusAuthFailed)
		if err := c.write(out.buf.Bytes()); err != nil {
			return false, err
		}
		return false, errAuthFailed
	}
	out.bool(true)
	if c.atLeast(1, 7) {
		out.int8(typeByteArray)
		out.int32(int32(len(features)))
		out.raw(features)
	}
	if c.atLeast(1, 4) {
		out.int8(typeUuid)
		out.raw(c.node.id[:])
	}
	return true, c.write(out.buf.Bytes())
}

func compareVersions(a, b [3]int16) int {
	for i := range a {
		if a[i] != b[i] {
			return int(a[i] - b[i])
		}
	}
	return 0
}

type opError struct {
	status int32
	msg    string
}

func (e *opError) Error() string {
	return e.msg
}

func (c *nodeConn) handle(msg []byte) error {
	in := &wireReader{buf: msg}
	opCode := in.int16()
	reqId := in.int64()
	if in.err != nil {
		return in.err
	}
	c.node.countRequest(opCode)
	body := &wireWriter{}
	opErr := c.node.cluster.execute(c, opCode, in, body)
	if opErr == nil && in.err != nil {
		opErr = &opError{statusFailed, "malformed request: " + in.err.Error()}
	}

	out := &wireWriter{}
	out.int64(reqId)
	if c.atLeast(1, 4) {
		if opErr != nil {
			out.int16(1)
		} else {
			out.int16(0)
		}
	}
	if opErr != nil {
		out.int32(opErr.status)
		out.string(opErr.msg)
	} else {
		if !c.atLeast(1, 4) {
			out.int32(statusSuccess)
		}
		out.raw(body.buf.Bytes())
	}
	return c.write(out.buf.Bytes())
}

func (c *Cluster) rollbackConn(conn *nodeConn) {
	c.mux.Lock()
	defer c.mux.Unlock()
	for id, tx := range c.txs {
		if tx.conn == conn {
			c.restore(tx)
			delete(c.txs, id)
		}
	}
}

func (c *Cluster) restore(tx *fakeTx) {
	for i := len(tx.order) - 1; i >= 0; i-- {
		k := tx.order[i]
		cache, ok := c.caches[k.cacheId]
		if !ok {
			continue
		}
		if prev := tx.undo[k]; prev != nil {
			cache.entries[k.key] = prev
		} else {
			delete(cache.entries, k.key)
		}
	}
}

// cacheRequest is the common header of cache operations.
type cacheRequest struct {
	cache  *fakeCache
	id     int32
	tx     *fakeTx
	expiry *[3]int64 // creation, update, access in millis
}

func (c *Cluster) execute(conn *nodeConn, opCode int16, in *wireReader, out *wireWriter) *opError {
	c.mux.Lock()
	defer c.mux.Unlock()
	switch opCode {
	case 1050:
		out.int32(int32(len(c.caches)))
		for _, cache := range c.caches {
			out.string(cache.name)
		}
		return nil
	case 1051, 1052:
		name, _ := in.string()
		id := internal.StringHash(name)
		if _, ok := c.caches[id]; ok {
			if opCode == 1051 {
				return &opError{statusCacheExists, fmt.Sprintf("cache already exists [name=%s]", name)}
			}
			return nil
		}
		c.caches[id] = &fakeCache{name: name, entries: make(map[string]*fakeEntry)}
		return nil
	case 1056:
		id := in.int32()
		if _, ok := c.caches[id]; !ok {
			return &opError{statusCacheDoesNotExists, fmt.Sprintf("cache does not exist [cacheId=%d]", id)}
		}
		delete(c.caches, id)
		return nil
	case 4000:
		if !conn.atLeast(1, 5) {
			return &opError{statusInvalidOpCode, "transactions are not supported"}
		}
		in.int8()
		in.int8()
		in.int64()
		in.value()
		c.txIdGen++
		tx := &fakeTx{id: c.txIdGen, conn: conn, undo: make(map[undoKey]*fakeEntry)}
		c.txs[tx.id] = tx
		out.int32(tx.id)
		return nil
	case 4001:
		id := in.int32()
		commit := in.bool()
		tx, ok := c.txs[id]
		if !ok || tx.conn != conn {
			return &opError{statusTxNotFound, fmt.Sprintf("transaction %d not found", id)}
		}
		if !commit {
			c.restore(tx)
		}
		delete(c.txs, id)
		return nil
	}

	if opCode < 1000 || (opCode > 1020 && opCode != 1055) {
		return &opError{statusInvalidOpCode, fmt.Sprintf("invalid op code %d", opCode)}
	}
	req, opErr := c.readCacheRequest(conn, in)
	if opErr != nil {
		return opErr
	}
	now := time.Now()
	switch opCode {
	case 1055:
	case 1000:
		k := in.value()
		c.writeValue(out, req.get(k, now))
	case 1001:
		k, v := in.value(), in.value()
		c.put(req, k, v, now)
	case 1002:
		k, v := in.value(), in.value()
		absent := req.get(k, now) == nil
		if absent {
			c.put(req, k, v, now)
		}
		out.bool(absent)
	case 1003:
		n := int(in.int32())
		var found [][2][]byte
		for i := 0; i < n; i++ {
			k := in.value()
			if v := req.get(k, now); v != nil {
				found = append(found, [2][]byte{k, v})
			}
		}
		out.int32(int32(len(found)))
		for _, kv := range found {
			out.raw(kv[0])
			out.raw(kv[1])
		}
	case 1004:
		n := int(in.int32())
		for i := 0; i < n; i++ {
			k, v := in.value(), in.value()
			c.put(req, k, v, now)
		}
	case 1005:
		k, v := in.value(), in.value()
		c.writeValue(out, req.get(k, now))
		c.put(req, k, v, now)
	case 1006:
		k, v := in.value(), in.value()
		old := req.get(k, now)
		if old != nil {
			c.put(req, k, v, now)
		}
		c.writeValue(out, old)
	case 1007:
		k := in.value()
		old := req.get(k, now)
		if old != nil {
			c.remove(req, k)
		}
		c.writeValue(out, old)
	case 1009:
		k, v := in.value(), in.value()
		exists := req.get(k, now) != nil
		if exists {
			c.put(req, k, v, now)
		}
		out.bool(exists)
	case 1010:
		k, oldV, newV := in.value(), in.value(), in.value()
		cur := req.get(k, now)
		ok := cur != nil && bytes.Equal(cur, oldV)
		if ok {
			c.put(req, k, newV, now)
		}
		out.bool(ok)
	case 1011:
		out.bool(req.get(in.value(), now) != nil)
	case 1012:
		n := int(in.int32())
		all := true
		for i := 0; i < n; i++ {
			if req.get(in.value(), now) == nil {
				all = false
			}
		}
		out.bool(all)
	case 1016:
		k := in.value()
		exists := req.get(k, now) != nil
		if exists {
			c.remove(req, k)
		}
		out.bool(exists)
	case 1017:
		k, v := in.value(), in.value()
		cur := req.get(k, now)
		ok := cur != nil && bytes.Equal(cur, v)
		if ok {
			c.remove(req, k)
		}
		out.bool(ok)
	case 1018:
		n := int(in.int32())
		for i := 0; i < n; i++ {
			c.remove(req, in.value())
		}
	case 1013, 1019:
		for k := range req.cache.entries {
			c.remove(req, []byte(k))
		}
	case 1020:
		modes := int(in.int32())
		in.bytes(modes)
		var size int64
		for _, e := range req.cache.entries {
			if !e.expired(now) {
				size++
			}
		}
		out.int64(size)
	default:
		return &opError{statusInvalidOpCode, fmt.Sprintf("unsupported op code %d", opCode)}
	}
	return nil
}

func (c *Cluster) readCacheRequest(conn *nodeConn, in *wireReader) (*cacheRequest, *opError) {
	req := &cacheRequest{id: in.int32()}
	flags := in.uint8()
	if flags&flagTransactional != 0 {
		txId := in.int32()
		tx, ok := c.txs[txId]
		if !ok || tx.conn != conn {
			return nil, &opError{statusTxNotFound, fmt.Sprintf("transaction %d not found", txId)}
		}
		req.tx = tx
	}
	if flags&flagExpiryPolicy != 0 {
		req.expiry = &[3]int64{in.int64(), in.int64(), in.int64()}
	}
	cache, ok := c.caches[req.id]
	if !ok {
		return nil, &opError{statusCacheDoesNotExists, fmt.Sprintf("cache does not exist [cacheId=%d]", req.id)}
	}
	req.cache = cache
	return req, nil
}

func (req *cacheRequest) get(key []byte, now time.Time) []byte {
	e, ok := req.cache.entries[string(key)]
	if !ok || e.expired(now) {
		return nil
	}
	return e.value
}

func (c *Cluster) record(req *cacheRequest, key string) {
	if req.tx == nil {
		return
	}
	k := undoKey{req.id, key}
	if _, ok := req.tx.undo[k]; ok {
		return
	}
	var prev *fakeEntry
	if e, ok := req.cache.entries[key]; ok {
		cp := *e
		prev = &cp
	}
	req.tx.undo[k] = prev
	req.tx.order = append(req.tx.order, k)
}

func (c *Cluster) put(req *cacheRequest, key, value []byte, now time.Time) {
	k := string(key)
	c.record(req, k)
	e, exists := req.cache.entries[k]
	if exists && e.expired(now) {
		exists = false
	}
	next := &fakeEntry{value: append([]byte(nil), value...)}
	if exists {
		next.expireAt = e.expireAt
	}
	if req.expiry != nil {
		dur := req.expiry[0]
		if exists {
			dur = req.expiry[1]
		}
		switch {
		case dur == -1:
			next.expireAt = time.Time{}
		case dur >= 0:
			next.expireAt = now.Add(time.Duration(dur) * time.Millisecond)
		}
	}
	req.cache.entries[k] = next
}

func (c *Cluster) remove(req *cacheRequest, key []byte) {
	k := string(key)
	if _, ok := req.cache.entries[k]; !ok {
		return
	}
	c.record(req, k)
	delete(req.cache.entries, k)
}

func (c *Cluster) writeValue(out *wireWriter, value []byte) {
	if value == nil {
		out.int8(typeNull)
		return
	}
	out.raw(value)
}
