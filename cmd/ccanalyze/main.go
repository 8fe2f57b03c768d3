package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/soypat/cc2530/ccdebug"
	"github.com/soypat/cc2530/rfcore"
	"github.com/soypat/saleae"
	"github.com/soypat/saleae/analyzers"
)

type Analyzer struct {
	OmitReads   bool
	OmitFIFO    bool
	ShowDebug   bool
	TimingsFile string
}

func main() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(handler))
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "ccanalyze - Process Binary Saleae digital data files of a CC253x debug interface into radio register accesses.\n\tUsage:\n")
		flag.PrintDefaults()
	}
	dd := flag.String("f-dd", "digital_1.bin", "Input filename: DD debug data.")
	gate := flag.String("f-gate", "digital_0.bin", "Input filename: command gate, low during each debug command.")
	dc := flag.String("f-dc", "digital_2.bin", "Input filename: DC debug clock.")
	output := flag.String("o", "accesses.txt", "Output filename of register accesses.")
	var an Analyzer
	flag.StringVar(&an.TimingsFile, "o-time", "", "Output timing data to a file corresponding to output history line-by-line.")
	flag.BoolVar(&an.OmitReads, "omit-read", false, "Omit register reads in output.")
	flag.BoolVar(&an.OmitFIFO, "omit-fifo", false, "Omit RFD (FIFO data) accesses in output.")
	flag.BoolVar(&an.ShowDebug, "show-debug", false, "Show debug commands that are not register accesses.")
	flag.Parse()

	start := time.Now()
	if err := an.run(*dd, *dc, *gate, *output); err != nil {
		log.Fatal(err.Error())
	}
	slog.Info("finished", slog.Duration("took", time.Since(start)))
}

func (an *Analyzer) run(fdd, fdc, fgate, output string) error {
	cmds, err := processFiles(fdd, fdc, fgate)
	if err != nil {
		return err
	}
	fp, err := os.Create(output)
	if err != nil {
		return err
	}
	defer fp.Close()
	var timings io.Writer
	if an.TimingsFile != "" {
		slog.Info("creating timings file", slog.String("file", an.TimingsFile))
		tf, err := os.Create(an.TimingsFile)
		if err != nil {
			return err
		}
		defer tf.Close()
		timings = tf
	}
	w := bufio.NewWriter(fp)
	if err := an.write(w, timings, cmds); err != nil {
		return err
	}
	return w.Flush()
}

func processFiles(fdd, fdc, fgate string) ([]debugCmd, error) {
	dd, err := opendigital(fdd)
	if err != nil {
		return nil, err
	}
	dc, err := opendigital(fdc)
	if err != nil {
		return nil, err
	}
	gate, err := opendigital(fgate)
	if err != nil {
		return nil, err
	}
	spi := analyzers.SPI{}
	txs, _ := spi.Scan(dc, gate, dd, dd)
	var cmds []debugCmd
	for _, tx := range txs {
		cmd, err := parseCommand(tx.SDO)
		if err != nil {
			slog.Warn("skipping transaction", slog.Float64("t", tx.StartTime()), slog.String("err", err.Error()))
			continue
		}
		cmd.Start = tx.StartTime()
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

func opendigital(filename string) (*saleae.DigitalFile, error) {
	fp, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return saleae.ReadDigitalFile(fp)
}

// debugCmd is a single debug command as captured between gate edges.
type debugCmd struct {
	Cmd    uint8
	Params []byte
	// Wait is the number of 8-clock cycles spent waiting for the target.
	Wait  int
	Resp  []byte
	Start float64
}

var errShortCmd = errors.New("transaction shorter than command")

// parseCommand splits the bytes clocked during one command into the
// command, its parameters, readiness wait cycles and the response.
func parseCommand(b []byte) (c debugCmd, err error) {
	if len(b) == 0 {
		return c, errShortCmd
	}
	c.Cmd = b[0]
	np := ccdebug.ParamLen(c.Cmd)
	nr := ccdebug.ResponseLen(c.Cmd)
	if len(b) < 1+np+nr {
		return c, errShortCmd
	}
	c.Params = b[1 : 1+np]
	c.Resp = b[len(b)-nr:]
	c.Wait = len(b) - 1 - np - nr
	return c, nil
}

func (c *debugCmd) String() string {
	var name string
	switch {
	case c.Cmd&^3 == ccdebug.CmdDebugInstr:
		name = "DEBUG_INSTR"
	case c.Cmd == ccdebug.CmdGetChipID:
		name = "GET_CHIP_ID"
	case c.Cmd == ccdebug.CmdGetPC:
		name = "GET_PC"
	case c.Cmd == ccdebug.CmdHalt:
		name = "HALT"
	case c.Cmd == ccdebug.CmdResume:
		name = "RESUME"
	case c.Cmd == ccdebug.CmdReadStatus:
		name = "READ_STATUS"
	case c.Cmd == ccdebug.CmdWrConfig:
		name = "WR_CONFIG"
	case c.Cmd == ccdebug.CmdRdConfig:
		name = "RD_CONFIG"
	default:
		name = fmt.Sprintf("cmd(%#x)", c.Cmd)
	}
	return fmt.Sprintf("%-11s params=%x resp=%x wait=%d", name, c.Params, c.Resp, c.Wait)
}

type accessKind uint8

const (
	kindDebug accessKind = iota
	kindRead
	kindWrite
	kindStrobe
)

// access is a register access reconstructed from debug instructions.
type access struct {
	Kind  accessKind
	Addr  uint16
	Value uint8
	Start float64
	// Cmd is set for kindDebug.
	Cmd *debugCmd
}

func (a access) String() string {
	switch a.Kind {
	case kindRead:
		return fmt.Sprintf("read   %-11s = %#02x", rfcore.RegName(a.Addr), a.Value)
	case kindWrite:
		return fmt.Sprintf("write  %-11s = %#02x", rfcore.RegName(a.Addr), a.Value)
	case kindStrobe:
		return "strobe " + rfcore.Strobe(a.Value).String()
	}
	return "debug  " + a.Cmd.String()
}

// interpreter tracks the target's DPTR and accumulator across debug
// instructions to recover XDATA accesses.
type interpreter struct {
	dptr uint16
	acc  uint8
}

func (it *interpreter) feed(c *debugCmd) (a access, ok bool) {
	a.Start = c.Start
	if c.Cmd&^3 != ccdebug.CmdDebugInstr || len(c.Params) == 0 {
		return access{Kind: kindDebug, Cmd: c, Start: c.Start}, true
	}
	acc := c.Resp[0]
	defer func() { it.acc = acc }()
	switch c.Params[0] {
	case ccdebug.OpMovDPTR:
		if len(c.Params) == 3 {
			it.dptr = uint16(c.Params[1])<<8 | uint16(c.Params[2])
		}
		return a, false
	case ccdebug.OpMovA:
		return a, false
	case ccdebug.OpMovxRead:
		a.Kind, a.Addr, a.Value = kindRead, it.dptr, acc
	case ccdebug.OpMovxWrite:
		a.Kind, a.Addr, a.Value = kindWrite, it.dptr, it.acc
		if it.dptr == rfcore.RFST {
			a.Kind = kindStrobe
		}
	default:
		return access{Kind: kindDebug, Cmd: c, Start: c.Start}, true
	}
	return a, true
}

func (an *Analyzer) keep(a access) bool {
	switch {
	case a.Kind == kindDebug:
		return an.ShowDebug
	case an.OmitReads && a.Kind == kindRead:
		return false
	case an.OmitFIFO && a.Addr == rfcore.RFD && a.Kind != kindStrobe:
		return false
	}
	return true
}

// write prints accesses, collapsing identical consecutive lines.
func (an *Analyzer) write(w, timings io.Writer, cmds []debugCmd) error {
	const fmtMsg = "x%-3d %s\n"
	var it interpreter
	var last string
	count := 0
	flush := func() error {
		if count == 0 {
			return nil
		}
		_, err := fmt.Fprintf(w, fmtMsg, count, last)
		return err
	}
	for i := range cmds {
		a, ok := it.feed(&cmds[i])
		if !ok || !an.keep(a) {
			continue
		}
		line := a.String()
		if timings != nil {
			fmt.Fprintf(timings, "t=%f\t%s\n", a.Start, line)
		}
		if line == last {
			count++
			continue
		}
		if err := flush(); err != nil {
			return err
		}
		last = line
		count = 1
	}
	return flush()
}
