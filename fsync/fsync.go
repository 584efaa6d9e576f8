// Package fsync defines the FractalSync port protocol: the request and
// response messages exchanged between compute units and tree nodes, the
// masks and enums that configure nodes, and the topology plan shared by
// tree assembly and the offline request generator.
package fsync

import "fmt"

// A PortMask is a bitset of child-port indices. Bit i corresponds to
// child port i of a node. It is used both as a source mask (which ports
// a request represents) and as a destination mask (which ports a wake
// must fan out to).
type PortMask uint8

// Has reports whether port i is in the mask.
func (m PortMask) Has(i int) bool {
	return m&(1<<uint(i)) != 0
}

// Set returns the mask with port i added.
func (m PortMask) Set(i int) PortMask {
	return m | (1 << uint(i))
}

// Count returns the number of ports in the mask.
func (m PortMask) Count() int {
	n := 0
	for v := m; v != 0; v &= v - 1 {
		n++
	}
	return n
}

// Direction selects the axis a 1D structure merges along.
type Direction int

// The two merge directions.
const (
	Horizontal Direction = iota
	Vertical
)

func (d Direction) String() string {
	switch d {
	case Horizontal:
		return "Horizontal"
	case Vertical:
		return "Vertical"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Role determines the internal structure of a node.
type Role int

// Node roles. Horizontal and Vertical nodes merge one pair of child
// ports along one axis. Combined nodes fuse a horizontal and a vertical
// level behind four child ports. Root nodes are combined nodes at the
// tree apex: the remote register file is disabled and every request
// resolves locally. NeighborPair nodes link two adjacent compute units
// directly, outside the tree proper.
const (
	RoleHorizontal Role = iota
	RoleVertical
	RoleCombined
	RoleRoot
	RoleNeighborPair
)

func (r Role) String() string {
	switch r {
	case RoleHorizontal:
		return "Horizontal"
	case RoleVertical:
		return "Vertical"
	case RoleCombined:
		return "Combined"
	case RoleRoot:
		return "Root"
	case RoleNeighborPair:
		return "NeighborPair"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// NumChildPorts returns the number of child ports a node with this role
// carries.
func (r Role) NumChildPorts() int {
	switch r {
	case RoleCombined, RoleRoot:
		return 4
	default:
		return 2
	}
}

// NumLevels returns the number of logical tree levels the role fuses.
func (r Role) NumLevels() int {
	switch r {
	case RoleCombined, RoleRoot:
		return 2
	default:
		return 1
	}
}

// IsApex reports whether the role terminates the tree: no parent port,
// no remote register file, all requests resolve locally.
func (r Role) IsApex() bool {
	return r == RoleRoot || r == RoleNeighborPair
}

// RemoteRegKind selects the remote register-file organization.
type RemoteRegKind int

// The two remote register-file organizations. RegDirect holds one line
// per valid (level, id) signature. RegCAM holds a smaller associative
// pool for when not all signatures are simultaneously live.
const (
	RegDirect RemoteRegKind = iota
	RegCAM
)

func (k RemoteRegKind) String() string {
	switch k {
	case RegDirect:
		return "DirectMapped"
	case RegCAM:
		return "CAM"
	}
	return fmt.Sprintf("RemoteRegKind(%d)", int(k))
}

// ErrorKind classifies the errors a node can raise while handling a
// request. Runtime kinds fold into the sticky error bit of the
// eventual response; ErrConfigurationInvalid is fatal at build time and
// ErrEmptyPop is a protocol-usage violation.
type ErrorKind int

// The error taxonomy.
const (
	ErrNone ErrorKind = iota
	ErrIDOutOfRange
	ErrSignatureOutOfRange
	ErrQueueOverflow
	ErrEmptyPop
	ErrConfigurationInvalid
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNone:
		return "None"
	case ErrIDOutOfRange:
		return "IdOutOfRange"
	case ErrSignatureOutOfRange:
		return "SignatureOutOfRange"
	case ErrQueueOverflow:
		return "QueueOverflow"
	case ErrEmptyPop:
		return "EmptyPop"
	case ErrConfigurationInvalid:
		return "ConfigurationInvalid"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}
