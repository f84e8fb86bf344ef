// Package runner drives one gpiojitter measurement run.
//
// A run owns two workers connected by a lock-free ring:
//   - the generator, a busy-wait loop pinned to a CPU core that toggles the
//     output pin every half-period and enqueues the measured interval
//   - the aggregator, which drains the ring into the run history, feeds the
//     live plot sink and writes the measurement log when the run ends
//
// # Basic Usage
//
//	r, err := runner.New(runner.Options{
//		Pin:        pin,
//		Clock:      clock.NewRuntime(),
//		HalfPeriod: config.HalfPeriod(10),
//		Core:       0,
//		LogPath:    "jitter.csv",
//	})
//	if err != nil {
//		return err
//	}
//	res, err := r.Run(ctx)
//
// Run returns when ctx is cancelled, Duration elapses, or a worker stops on
// its own (history limit reached, panic). Shutdown raises the termination
// flag, waits for both workers without a timeout and closes the pin.
package runner
