// Package container implements spec.md component I: given the banks a
// compilation produced, write them out as one of the platform-specific
// container formats named in spec.md §6 ("Platform output formats") -
// iNES, Game Boy, SMS, or raw concatenation.
//
// Grounded on `cmd_local/link/internal/ld/typelink.go`'s "walk definitions
// in a prescribed table order, write their bytes" structure, generalized
// from ELF/Mach-O section layout to ROM-container layout.
package container

import (
	"bytes"
	"fmt"
	"io"

	"github.com/anvil-lang/anvil/internal/bank"
)

// Format selects which container layout Write emits.
type Format int

const (
	FormatRaw Format = iota
	FormatINES
	FormatGameBoy
	FormatSMS
)

// FormatForSystem maps a platform backend's system name to its container
// format, the counterpart of internal/platform.InferFromExtension for the
// opposite direction (name -> format, rather than extension -> name).
func FormatForSystem(system string) Format {
	switch system {
	case "nes":
		return FormatINES
	case "gameboy":
		return FormatGameBoy
	case "sms":
		return FormatSMS
	default:
		return FormatRaw
	}
}

// Config carries the handful of container-level knobs that come from a
// source `config { ... }` directive (mapper number, mirroring mode, ...)
// rather than from any individual bank.
type Config struct {
	Mapper    int
	Mirroring string // "horizontal" | "vertical" | "four-screen"
}

// romBankUnit and chrBankUnit are the iNES container's fixed unit sizes:
// PRG/CHR counts in the header are measured in these units, not bytes.
const (
	romBankUnit = 16 * 1024
	chrBankUnit = 8 * 1024
)

// Write emits banks (in declaration order) into w using format, honoring
// spec.md §6: "Banks of RAM kind contribute no bytes but contribute to
// address maps" - only ContributesBytes banks are written.
func Write(w io.Writer, format Format, banks []*bank.Bank, cfg Config) error {
	switch format {
	case FormatINES:
		return writeINES(w, banks, cfg)
	case FormatGameBoy:
		return writeGameBoy(w, banks)
	case FormatSMS:
		return writeSMS(w, banks)
	default:
		return writeRaw(w, banks)
	}
}

// writeRaw is the concatenation of all byte-contributing banks in
// declaration order (spec.md §6: "a raw binary is the concatenation of all
// banks in declaration order").
func writeRaw(w io.Writer, banks []*bank.Bank) error {
	for _, b := range banks {
		if !b.Kind.ContributesBytes() {
			continue
		}
		if _, err := w.Write(b.Bytes()); err != nil {
			return fmt.Errorf("container: writing bank %q: %w", b.Name, err)
		}
	}
	return nil
}

// writeINES emits the 16-byte iNES header ("NES\x1A", PRG count, CHR count,
// mapper/flags) followed by each PRG bank then each CHR bank verbatim
// (spec.md §6's worked example), classifying banks by kind: program and
// data ROM banks are PRG, character ROM banks are CHR, and RAM banks are
// skipped (they contribute no bytes).
func writeINES(w io.Writer, banks []*bank.Bank, cfg Config) error {
	var prg, chr []*bank.Bank
	for _, b := range banks {
		switch b.Kind {
		case bank.KindProgramROM, bank.KindDataROM:
			prg = append(prg, b)
		case bank.KindCharacterROM:
			chr = append(chr, b)
		}
	}
	prgSize := totalSize(prg)
	chrSize := totalSize(chr)

	header := make([]byte, 16)
	copy(header[:4], "NES\x1A")
	header[4] = byte(ceilDiv(prgSize, romBankUnit))
	header[5] = byte(ceilDiv(chrSize, chrBankUnit))

	flags6 := byte(cfg.Mapper&0x0F) << 4
	switch cfg.Mirroring {
	case "vertical":
		flags6 |= 0x01
	case "four-screen":
		flags6 |= 0x08
	}
	header[6] = flags6
	header[7] = byte(cfg.Mapper & 0xF0)

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("container: writing iNES header: %w", err)
	}
	if err := writeRaw(w, prg); err != nil {
		return err
	}
	return writeRaw(w, chr)
}

func totalSize(banks []*bank.Bank) int {
	n := 0
	for _, b := range banks {
		n += len(b.Bytes())
	}
	return n
}

func ceilDiv(n, d int) int {
	if n == 0 {
		return 0
	}
	return (n + d - 1) / d
}

// writeGameBoy is the concatenation of banks (spec.md §6's raw-image case
// applies equally to Game Boy ROMs, which carry their cartridge header
// inline as ordinary bank bytes rather than a container-level header), with
// the header checksum (offset 0x14D) and global checksum (0x14E-0x14F)
// patched in afterward, following the same "fix up a checksum after
// assembling the image" step every Game Boy toolchain's `rgbfix`-equivalent
// performs.
func writeGameBoy(w io.Writer, banks []*bank.Bank) error {
	var buf bytes.Buffer
	if err := writeRaw(&buf, banks); err != nil {
		return err
	}
	img := buf.Bytes()
	if len(img) > 0x150 {
		patchGameBoyChecksums(img)
	}
	_, err := w.Write(img)
	return err
}

func patchGameBoyChecksums(img []byte) {
	var headerSum byte
	for i := 0x134; i <= 0x14C; i++ {
		headerSum = headerSum - img[i] - 1
	}
	img[0x14D] = headerSum

	var global uint16
	for i, b := range img {
		if i == 0x14E || i == 0x14F {
			continue
		}
		global += uint16(b)
	}
	img[0x14E] = byte(global >> 8)
	img[0x14F] = byte(global)
}

// writeSMS is the concatenation of banks; Sega Master System cartridges
// need no container header of their own (the SDSC header, when present, is
// written by the source as ordinary bank bytes like the Game Boy header).
func writeSMS(w io.Writer, banks []*bank.Bank) error {
	return writeRaw(w, banks)
}
