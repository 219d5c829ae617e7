package kernelabi

import (
	"io"
	"log"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/xenonrecomp/xenonrecomp/internal/guestctx"
	"github.com/xenonrecomp/xenonrecomp/internal/guestmem"
)

// NetSink is where a marshalled frame goes once NetSend has built it;
// defaulting to a discarding writer keeps the export safe to call with
// no network peripheral installed, the same "no device selected"
// fallback virtualxt's network.Device.Install logs and continues past
// rather than treating as fatal.
var NetSink io.Writer = io.Discard

// netConfig holds the source/destination addressing NetSend stamps
// onto every frame it builds. A real peripheral would negotiate this
// over DHCP; this recompiler exposes it as a package variable a host
// embedder sets once at startup.
var netConfig = struct {
	SrcMAC, DstMAC   net.HardwareAddr
	SrcIP, DstIP     net.IP
	SrcPort, DstPort uint16
}{
	SrcMAC:  net.HardwareAddr{0x00, 0x22, 0x48, 0x00, 0x00, 0x01},
	DstMAC:  net.HardwareAddr{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
	SrcIP:   net.IPv4(192, 168, 1, 64),
	DstIP:   net.IPv4(255, 255, 255, 255),
	SrcPort: 3074,
	DstPort: 3074,
}

// NetSend (`vxNetSend`, DWORD vxNetSend(LPVOID Buffer, DWORD Length))
// demonstrates the peripheral-facing side of the kernel ABI by lifting
// a guest byte buffer into a real Ethernet+IPv4+UDP frame via gopacket,
// generalizing virtualxt's network.Device from a pcap-backed live
// adapter to a frame builder any transport (pcap, a raw socket, a test
// buffer) can consume through NetSink. Returns the number of payload
// bytes sent, or 0 on a marshal failure.
func NetSend(ctx *guestctx.Context, base []byte) {
	ptr := ctx.GPR[3].U32()
	length := ctx.GPR[4].U32()

	payload := make([]byte, length)
	for i := uint32(0); i < length; i++ {
		payload[i] = guestmem.LoadU8(base, ptr+i)
	}

	eth := &layers.Ethernet{
		SrcMAC:       netConfig.SrcMAC,
		DstMAC:       netConfig.DstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    netConfig.SrcIP,
		DstIP:    netConfig.DstIP,
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(netConfig.SrcPort),
		DstPort: layers.UDPPort(netConfig.DstPort),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		log.Printf("vxNetSend: %v", err)
		ctx.GPR[3].SetU32(0)
		return
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)); err != nil {
		log.Printf("vxNetSend: %v", err)
		ctx.GPR[3].SetU32(0)
		return
	}

	if _, err := NetSink.Write(buf.Bytes()); err != nil {
		log.Printf("vxNetSend: write: %v", err)
		ctx.GPR[3].SetU32(0)
		return
	}
	ctx.GPR[3].SetU32(length)
}
