package thin

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"

	"github.com/yanglinqiang/ignite"
	"github.com/yanglinqiang/ignite/internal/bitset"
)

// AttributeFeature is a bit of the feature mask exchanged in the handshake since 1.7.0.
type AttributeFeature uint

// Feature bits in the order the server assigns them. Only user attributes are sent by this client,
// the rest are named so that the server mask can be inspected.
const (
	UserAttributesFeature AttributeFeature = iota
	ExecuteTaskByNameFeature
	ClusterStatesFeature
	ClusterGroupGetNodesEndpointsFeature
	ClusterGroupsFeature
	ServiceInvokeFeature
	DefaultQueryTimeoutFeature
	QueryPartitionsBatchSizeFeature
	BinaryConfigurationFeature
	GetServiceDescriptorsFeature
	ServiceInvokeCallContextFeature
	HeartbeatFeature
	DataReplicationOperationsFeature
	AllAffinityMappingsFeature
	IndexQueryFeature
	IndexQueryLimitFeature
	ServiceTopologyFeature
	_minFeature = UserAttributesFeature
	_maxFeature = ServiceTopologyFeature
)

// ProtocolVersion is a thin protocol version, ordered by [ProtocolVersion.Compare].
type ProtocolVersion struct {
	Major int16
	Minor int16
	Patch int16
}

var (
	minVersion = ProtocolVersion{1, 0, 0}
	maxVersion = ProtocolVersion{1, 7, 0}
)

// isSupportedVersion accepts the released 1.x versions, all of them have a zero patch.
func isSupportedVersion(ver ProtocolVersion) bool {
	return ver.Patch == 0 && ver.Compare(minVersion) >= 0 && ver.Compare(maxVersion) <= 0
}

// Handshake request codes.
const (
	handshakeCode  int8 = 1
	thinClientCode int8 = 2
)

// capability is a protocol behaviour that appeared in a given version.
type capability int

const (
	capAuthorization capability = iota
	capResponseFlags
	capPartitionAwareness
	capTransactions
	capExpiryPolicy
	capBitmapFeatures
)

var capabilities = [...]struct {
	since ProtocolVersion
	name  string
}{
	capAuthorization:      {ProtocolVersion{1, 1, 0}, "user credentials"},
	capResponseFlags:      {ProtocolVersion{1, 4, 0}, "response flags"},
	capPartitionAwareness: {ProtocolVersion{1, 4, 0}, "partition awareness"},
	capTransactions:       {ProtocolVersion{1, 5, 0}, "transactions"},
	capExpiryPolicy:       {ProtocolVersion{1, 6, 0}, "expiry policies"},
	capBitmapFeatures:     {ProtocolVersion{1, 7, 0}, "feature masks"},
}

// ProtocolContext is the negotiated version with the feature mask of the connection.
type ProtocolContext struct {
	version  ProtocolVersion
	features *bitset.BitSet
}

// NewProtocolContext creates a protocol context. Features are dropped for versions without
// feature masks.
func NewProtocolContext(version ProtocolVersion, features ...AttributeFeature) *ProtocolContext {
	ctx := &ProtocolContext{version: version}
	if ctx.supports(capBitmapFeatures) {
		ctx.features = bitset.New()
		for _, feature := range features {
			ctx.features.Set(uint(feature))
		}
	}
	return ctx
}

func (ctx *ProtocolContext) Version() ProtocolVersion {
	return ctx.version
}

func (ctx *ProtocolContext) clone() *ProtocolContext {
	ret := &ProtocolContext{version: ctx.version}
	if ctx.features != nil {
		ret.features = bitset.FromBytes(ctx.features.Bytes())
	}
	return ret
}

// marshal writes the version part of the handshake request.
func (ctx *ProtocolContext) marshal(writer BinaryOutputStream) {
	writer.WriteInt16(ctx.version.Major)
	writer.WriteInt16(ctx.version.Minor)
	writer.WriteInt16(ctx.version.Patch)
	writer.WriteInt8(thinClientCode)
	if ctx.supports(capBitmapFeatures) {
		marshalByteArray(writer, ctx.features.Bytes())
	}
}

func (ctx *ProtocolContext) updateAttributeFeatures(bs *bitset.BitSet) {
	if bs != nil {
		ctx.features = bs
	}
}

func (ctx *ProtocolContext) supports(c capability) bool {
	return ctx.version.Compare(capabilities[c].since) >= 0
}

// require fails with FunctionalityDisabled when the negotiated version lacks c.
func (ctx *ProtocolContext) require(c capability) error {
	if ctx.supports(c) {
		return nil
	}
	return ignite.Errorf(ignite.FunctionalityDisabled, "%s are not supported for protocol %v, %v required",
		capabilities[c].name, ctx.version, capabilities[c].since).WithComponent(component)
}

// SupportsAttributeFeature reports whether both sides agreed on f.
func (ctx *ProtocolContext) SupportsAttributeFeature(f AttributeFeature) bool {
	return ctx.features != nil && ctx.features.Test(uint(f))
}

func (ctx *ProtocolContext) SupportsAuthorization() bool {
	return ctx.supports(capAuthorization)
}

// SupportsResponseFlags reports whether responses carry a flags field instead of a status code.
func (ctx *ProtocolContext) SupportsResponseFlags() bool {
	return ctx.supports(capResponseFlags)
}

func (ctx *ProtocolContext) SupportsPartitionAwareness() bool {
	return ctx.supports(capPartitionAwareness)
}

func (ctx *ProtocolContext) SupportsTransactions() bool {
	return ctx.supports(capTransactions)
}

func (ctx *ProtocolContext) SupportsExpiryPolicy() bool {
	return ctx.supports(capExpiryPolicy)
}

func (ctx *ProtocolContext) SupportsBitmapFeatures() bool {
	return ctx.supports(capBitmapFeatures)
}

// ParseVersion parses a "major.minor.patch" version, false if ver is malformed.
func ParseVersion(ver string) (ProtocolVersion, bool) {
	parts := strings.Split(ver, ".")
	if len(parts) != 3 {
		return ProtocolVersion{}, false
	}
	var nums [3]int16
	for i, part := range parts {
		n, err := strconv.ParseInt(part, 10, 16)
		if err != nil {
			return ProtocolVersion{}, false
		}
		nums[i] = int16(n)
	}
	return ProtocolVersion{Major: nums[0], Minor: nums[1], Patch: nums[2]}, true
}

func (curr ProtocolVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", curr.Major, curr.Minor, curr.Patch)
}

// Compare returns a negative number, zero or a positive number when curr is older than, equal to
// or newer than other.
func (curr ProtocolVersion) Compare(other ProtocolVersion) int {
	return cmp.Or(
		cmp.Compare(curr.Major, other.Major),
		cmp.Compare(curr.Minor, other.Minor),
		cmp.Compare(curr.Patch, other.Patch),
	)
}
