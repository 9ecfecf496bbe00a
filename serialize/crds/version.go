package crds

import (
	"fmt"

	"github.com/996BC/996.Gossip/crypto"
	"github.com/996BC/996.Gossip/serialize/wire"
)

// Release is a software version; Commit is the first four bytes of the
// source commit when the build knows it
type Release struct {
	Major  uint16
	Minor  uint16
	Patch  uint16
	Commit *uint32
}

func (v Release) String() string {
	if v.Commit == nil {
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	}
	return fmt.Sprintf("%d.%d.%d (src:%08x)", v.Major, v.Minor, v.Patch, *v.Commit)
}

func (v *Release) marshal(w *wire.Writer) {
	w.U16(v.Major)
	w.U16(v.Minor)
	w.U16(v.Patch)
	w.Option(v.Commit != nil)
	if v.Commit != nil {
		w.U32(*v.Commit)
	}
}

func unmarshalRelease(r *wire.Reader) Release {
	var v Release
	v.Major = r.U16()
	v.Minor = r.U16()
	v.Patch = r.U16()
	if r.Option() {
		commit := r.U32()
		v.Commit = &commit
	}
	return v
}

// LegacyVersion announces the software release of a node
type LegacyVersion struct {
	From      crypto.Pubkey
	Wallclock uint64
	Release   Release
}

func (v *LegacyVersion) Kind() DataKind { return KindLegacyVersion }
func (v *LegacyVersion) Pubkey() crypto.Pubkey { return v.From }
func (v *LegacyVersion) GetWallclock() uint64 { return v.Wallclock }
func (v *LegacyVersion) Sanitize() error { return checkWallclock(v.Wallclock) }

func (v *LegacyVersion) marshal(w *wire.Writer) {
	w.Fixed(v.From[:])
	w.U64(v.Wallclock)
	v.Release.marshal(w)
}

func unmarshalLegacyVersion(r *wire.Reader) *LegacyVersion {
	v := &LegacyVersion{}
	r.Fixed(v.From[:])
	v.Wallclock = r.U64()
	v.Release = unmarshalRelease(r)
	return v
}

// Version announces the software release and the enabled feature set of a node
type Version struct {
	From       crypto.Pubkey
	Wallclock  uint64
	Release    Release
	FeatureSet uint32
}

func (v *Version) Kind() DataKind { return KindVersion }
func (v *Version) Pubkey() crypto.Pubkey { return v.From }
func (v *Version) GetWallclock() uint64 { return v.Wallclock }
func (v *Version) Sanitize() error { return checkWallclock(v.Wallclock) }

func (v *Version) marshal(w *wire.Writer) {
	w.Fixed(v.From[:])
	w.U64(v.Wallclock)
	v.Release.marshal(w)
	w.U32(v.FeatureSet)
}

func unmarshalVersion(r *wire.Reader) *Version {
	v := &Version{}
	r.Fixed(v.From[:])
	v.Wallclock = r.U64()
	v.Release = unmarshalRelease(r)
	v.FeatureSet = r.U32()
	return v
}
