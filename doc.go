// Package scale turns the byte stream of an industrial scale into typed
// mass readings.
//
// Raw bytes from a serial link are written into a RingBuffer through
// short-lived leases, complete lines are extracted from it (even when a line
// wraps around the end of the storage), and a Parser assembles the block
// protocol below into a Reading that is published to a Store:
//
//	/
//	CHANNEL_A: 1200kg
//	CHANNEL_B: 800kg
//	TOTAL: 2000kg
//	\
//
// Features:
//   - Single-producer / single-consumer ring with wraparound-safe line extraction
//   - Backpressure through shrinking leases instead of silent overwrites
//   - Explicit invalid masses and TOTAL cross-checking
//   - Atomic publication of whole readings
//
// Example usage:
//
//	port, err := serial.Open(serial.Config{Device: "/dev/ttyUSB0", BaudRate: 115200})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	p := scale.NewPipeline(scale.DefaultCapacity, zerolog.Nop())
//	go p.Run(ctx, port, func(t time.Time, s scale.Snapshot) {
//	    fmt.Println(t.Format(time.TimeOnly), s.Reading.Serialize())
//	})
//
//	// ... or read the latest reading at any time
//	latest := p.Store.Latest()
package scale
