package wsnet

import "fmt"

// wireEnvelope is a hand-rolled message in the pre-protoc-gen-go-v2 shape:
// plain struct + protobuf field tags + the three legacy Message methods.
// github.com/golang/protobuf's proto.Marshal/Unmarshal still accept this
// shape via its legacy-message shim, which is what the teacher's own vendored
// generated .pb.go files look like with the generator boilerplate stripped
// (consensus/tendermint/core and the p2p layer both speak this dialect
// rather than google.golang.org/protobuf's newer message API).
type wireEnvelope struct {
	To      []byte `protobuf:"bytes,1,opt,name=to,proto3"`
	Kind    string `protobuf:"bytes,2,opt,name=kind,proto3"`
	Payload []byte `protobuf:"bytes,3,opt,name=payload,proto3"`
}

func (m *wireEnvelope) Reset()         { *m = wireEnvelope{} }
func (m *wireEnvelope) String() string { return fmt.Sprintf("wireEnvelope%+v", *m) }
func (m *wireEnvelope) ProtoMessage()  {}

// handshakeHello is the one handshake message exchanged before either side
// trusts frames on the connection.
type handshakeHello struct {
	PeerID    []byte `protobuf:"bytes,1,opt,name=peer_id,proto3"`
	PublicKey []byte `protobuf:"bytes,2,opt,name=public_key,proto3"`
	Nonce     []byte `protobuf:"bytes,3,opt,name=nonce,proto3"`
	Signature []byte `protobuf:"bytes,4,opt,name=signature,proto3"`
}

func (m *handshakeHello) Reset()         { *m = handshakeHello{} }
func (m *handshakeHello) String() string { return fmt.Sprintf("handshakeHello%+v", *m) }
func (m *handshakeHello) ProtoMessage()  {}
