// Package narrator plays text as a sequence of streamed spans.
//
// Each span gets its own output and stream.Player: the Source pushes the
// response into the player, the narrator waits for the audio to finish and
// then tears the session down before moving to the next span. Pause, Resume
// and Stop act on whichever session is current.
//
// Example:
//
//	n, err := narrator.New(narrator.Config{Source: src})
//	if err != nil {
//		return err
//	}
//	err = n.Speak(ctx, narrator.SplitSpans(text))
package narrator
