// Command flacinfo prints the StreamInfo metadata block of a FLAC file.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sabletide/flac"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s file.flac\n", os.Args[0])
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, "flacinfo:", err)
		os.Exit(1)
	}
}

func run(path string) error {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return err
	}
	defer stream.Close()

	info := stream.Info
	fmt.Printf("sample rate:      %d Hz\n", info.SampleRate)
	fmt.Printf("channels:         %d\n", info.NChannels)
	fmt.Printf("bits per sample:  %d\n", info.BitsPerSample)
	fmt.Printf("total samples:    %d\n", info.NSamples)
	fmt.Printf("block size:       %d - %d\n", info.BlockSizeMin, info.BlockSizeMax)
	fmt.Printf("frame size:       %d - %d bytes\n", info.FrameSizeMin, info.FrameSizeMax)
	fmt.Printf("md5:              %x\n", info.MD5sum)
	fmt.Printf("metadata blocks:  %d\n", len(stream.Blocks))

	nframes := 0
	for {
		if _, err := stream.ParseNext(); err != nil {
			break
		}
		nframes++
	}
	fmt.Printf("audio frames:     %d\n", nframes)
	return nil
}
