// utilitários de formatação para headers e para o campo time_left.

package admission

import (
	"math"
	"strconv"
	"strings"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

func formatFloat(v float64) string {
	// sem notação científica para valores comuns
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var humanUnits = []struct {
	name string
	size int64
}{
	{"day", 86400},
	{"hour", 3600},
	{"minute", 60},
	{"second", 1},
}

// HumanizeDuration escreve a duração por extenso com precisão de segundos,
// arredondando para cima: 170s -> "2 minutes and 50 seconds",
// 3661s -> "1 hour, 1 minute and 1 second". Unidades zeradas são omitidas.
func HumanizeDuration(d time.Duration) string {
	secs := int64(math.Ceil(d.Seconds()))
	if secs <= 0 {
		return "0 seconds"
	}

	parts := make([]string, 0, len(humanUnits))
	for _, u := range humanUnits {
		n := secs / u.size
		if n == 0 {
			continue
		}
		secs -= n * u.size
		name := u.name
		if n != 1 {
			name += "s"
		}
		parts = append(parts, strconv.FormatInt(n, 10)+" "+name)
	}

	if len(parts) == 1 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}
