package container

import (
	"bytes"
	"testing"

	"github.com/anvil-lang/anvil/internal/bank"
)

func romBank(name string, kind bank.Kind, data []byte) *bank.Bank {
	b := bank.New(name, kind, nil, int64(len(data)))
	b.Write(data)
	return b
}

func TestFormatForSystem(t *testing.T) {
	cases := map[string]Format{
		"nes":     FormatINES,
		"gameboy": FormatGameBoy,
		"sms":     FormatSMS,
		"spc700":  FormatRaw,
		"unknown": FormatRaw,
	}
	for system, want := range cases {
		if got := FormatForSystem(system); got != want {
			t.Errorf("FormatForSystem(%q) = %v, want %v", system, got, want)
		}
	}
}

func TestWriteRawSkipsRAMBanks(t *testing.T) {
	banks := []*bank.Bank{
		romBank("prg", bank.KindProgramROM, []byte{0xA9, 0x05}),
		bank.New("wram", bank.KindUninitializedRAM, nil, 0x2000),
		romBank("chr", bank.KindCharacterROM, []byte{0x01, 0x02}),
	}
	var buf bytes.Buffer
	if err := Write(&buf, FormatRaw, banks, Config{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := []byte{0xA9, 0x05, 0x01, 0x02}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("expected % X, got % X", want, buf.Bytes())
	}
}

func TestWriteINESHeader(t *testing.T) {
	prg := make([]byte, 16*1024)
	chr := make([]byte, 8*1024)
	banks := []*bank.Bank{
		romBank("prg", bank.KindProgramROM, prg),
		romBank("chr", bank.KindCharacterROM, chr),
	}
	var buf bytes.Buffer
	cfg := Config{Mapper: 1, Mirroring: "vertical"}
	if err := Write(&buf, FormatINES, banks, cfg); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.Bytes()
	if len(out) != 16+len(prg)+len(chr) {
		t.Fatalf("expected header+prg+chr, got %d bytes", len(out))
	}
	if string(out[:4]) != "NES\x1A" {
		t.Fatalf("expected NES magic, got %q", out[:4])
	}
	if out[4] != 1 {
		t.Fatalf("expected 1 PRG bank unit, got %d", out[4])
	}
	if out[5] != 1 {
		t.Fatalf("expected 1 CHR bank unit, got %d", out[5])
	}
	if out[6]&0x01 == 0 {
		t.Fatalf("expected vertical mirroring bit set in flags6, got %#x", out[6])
	}
	if out[6]>>4 != 1 {
		t.Fatalf("expected mapper low nibble 1 in flags6, got %#x", out[6])
	}
}

func TestWriteGameBoyPatchesChecksums(t *testing.T) {
	img := make([]byte, 0x200)
	for i := range img {
		img[i] = byte(i)
	}
	banks := []*bank.Bank{romBank("rom", bank.KindProgramROM, img)}
	var buf bytes.Buffer
	if err := Write(&buf, FormatGameBoy, banks, Config{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.Bytes()

	var wantHeaderSum byte
	for i := 0x134; i <= 0x14C; i++ {
		wantHeaderSum = wantHeaderSum - out[i] - 1
	}
	if out[0x14D] != wantHeaderSum {
		t.Fatalf("expected patched header checksum %#x, got %#x", wantHeaderSum, out[0x14D])
	}

	var wantGlobal uint16
	for i, b := range out {
		if i == 0x14E || i == 0x14F {
			continue
		}
		wantGlobal += uint16(b)
	}
	got := uint16(out[0x14E])<<8 | uint16(out[0x14F])
	if got != wantGlobal {
		t.Fatalf("expected patched global checksum %#x, got %#x", wantGlobal, got)
	}
}

func TestWriteGameBoySkipsChecksumOnShortImage(t *testing.T) {
	img := []byte{0x00, 0x01, 0x02}
	banks := []*bank.Bank{romBank("rom", bank.KindProgramROM, img)}
	var buf bytes.Buffer
	if err := Write(&buf, FormatGameBoy, banks, Config{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), img) {
		t.Fatalf("expected an image shorter than the checksum region to pass through unpatched, got % X", buf.Bytes())
	}
}

func TestWriteSMSIsRawConcatenation(t *testing.T) {
	banks := []*bank.Bank{romBank("rom", bank.KindProgramROM, []byte{0xF3, 0xC9})}
	var buf bytes.Buffer
	if err := Write(&buf, FormatSMS, banks, Config{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{0xF3, 0xC9}) {
		t.Fatalf("expected raw concatenation, got % X", buf.Bytes())
	}
}
