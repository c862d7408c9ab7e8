// Command gen-pulse generates a synthetic DSI-format pulse export for
// testing alignment end to end. The output is a TSV of timestamp and
// signal columns with square pulses at a fixed period, optionally shifted
// and clock-skewed to simulate an unsynchronized recording.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
)

func main() {
	output := flag.String("o", "pulse_led.tsv", "output path")
	rate := flag.Float64("rate", 500, "sample rate in Hz")
	duration := flag.Float64("duration", 60, "recording length in seconds")
	period := flag.Float64("period", 2, "pulse period in seconds")
	width := flag.Float64("width", 0.1, "pulse width in seconds")
	lag := flag.Float64("lag", 0, "start offset in seconds")
	skew := flag.Float64("skew", 1, "clock skew factor (recorded rate / true rate)")
	flag.Parse()

	if *period <= 0 || *width <= 0 || *width >= *period {
		log.Fatalf("need 0 < width < period, got width=%g period=%g", *width, *period)
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("create %s: %v", *output, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "timestamp\tsignal")

	n := int(*duration * *rate)
	pulses := 0
	prev := 0.0
	for i := 0; i < n; i++ {
		// The recorded clock runs at skew times the true rate, so the
		// true time of sample i stretches accordingly.
		t := float64(i) / (*rate * *skew)
		phase := t - *lag
		signal := 0.0
		if phase >= 0 {
			off := phase - float64(int(phase / *period))*(*period)
			if off < *width {
				signal = 1.0
			}
		}
		if signal > 0 && prev == 0 {
			pulses++
		}
		prev = signal
		fmt.Fprintf(w, "%.6f\t%.1f\n", float64(i)/(*rate), signal)
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("write %s: %v", *output, err)
	}
	log.Printf("✓ Created: %s (%d samples, %d pulses)", *output, n, pulses)
}
