package admission

import "net/http"

// interceptWriter repassa tudo ao writer original, exceto uma resposta 429:
// essa é engolida (status e corpo) para que o middleware arme o cooldown e
// escreva o payload de bloqueio depois que o handler retornar.
type interceptWriter struct {
	http.ResponseWriter

	status      int
	wroteHeader bool
	intercepted bool
}

func (w *interceptWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	// 1xx não encerra o cabeçalho
	if code >= 100 && code < 200 && code != http.StatusSwitchingProtocols {
		w.ResponseWriter.WriteHeader(code)
		return
	}
	w.wroteHeader = true
	w.status = code
	if code == http.StatusTooManyRequests {
		w.intercepted = true
		return
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *interceptWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.intercepted {
		return len(b), nil
	}
	return w.ResponseWriter.Write(b)
}

func (w *interceptWriter) Flush() {
	if w.intercepted {
		return
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		if !w.wroteHeader {
			w.WriteHeader(http.StatusOK)
		}
		f.Flush()
	}
}

func (w *interceptWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Status devolve 200 quando o handler não escreveu nada.
func (w *interceptWriter) Status() int {
	if !w.wroteHeader {
		return http.StatusOK
	}
	return w.status
}
