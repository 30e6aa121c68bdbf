// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/sambamock/pkg/flash"
)

var dumpAll bool

var dumpCmd = &cobra.Command{
	Use:   "dump <image>",
	Short: "Print the contents of a flash snapshot",
	Long: `Hex dump a snapshot written by 'sambamock serve --image'.

Rows that are entirely erased (0xFF) are skipped unless --all is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().BoolVar(&dumpAll, "all", false, "Include erased rows")
}

func runDump(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	store, err := flash.LoadImage(f)
	if err != nil {
		return err
	}
	return dumpStore(os.Stdout, store, dumpAll)
}

const dumpRow = 16

// dumpStore writes every block of store as a hex dump with absolute addresses
func dumpStore(w io.Writer, store *flash.Store, all bool) error {
	erased := bytes.Repeat([]byte{flash.ErasedByte}, dumpRow)
	for _, b := range store.Blocks() {
		fmt.Fprintf(w, "Block 0x%08X +0x%X\n", b.Base(), b.Size())
		data, err := b.Read(b.Base(), b.Size())
		if err != nil {
			return err
		}

		skipped := 0
		for off := 0; off < len(data); off += dumpRow {
			row := data[off:min(off+dumpRow, len(data))]
			if !all && bytes.Equal(row, erased[:len(row)]) {
				skipped++
				continue
			}
			if skipped > 0 {
				fmt.Fprintf(w, "  * %d erased rows\n", skipped)
				skipped = 0
			}
			fmt.Fprintf(w, "  %08X  %s\n", b.Base()+uint32(off), formatRow(row))
		}
		if skipped > 0 {
			fmt.Fprintf(w, "  * %d erased rows\n", skipped)
		}
	}
	return nil
}

func formatRow(row []byte) string {
	ascii := make([]byte, len(row))
	for i, c := range row {
		if c >= 0x20 && c < 0x7F {
			ascii[i] = c
		} else {
			ascii[i] = '.'
		}
	}
	return fmt.Sprintf("%-47s  |%s|", spacedHex(row), ascii)
}

func spacedHex(row []byte) string {
	var s bytes.Buffer
	for i, c := range row {
		if i > 0 {
			s.WriteByte(' ')
		}
		s.WriteString(hex.EncodeToString([]byte{c}))
	}
	return s.String()
}
