package report

import (
	"time"

	"weddingsync/internal/core"
)

func mustDate(s string) time.Time {
	t, err := time.Parse(core.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}
