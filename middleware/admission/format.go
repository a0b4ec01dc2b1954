// utilitário pequeno para formatação rápida/consistente de valores numéricos
// em headers, sem puxar fmt (mais “pesado” e genérico) para o caminho quente.

package admission

import "strconv"

func formatInt(v int) string { return strconv.Itoa(v) }

func formatInt64(v int64) string { return strconv.FormatInt(v, 10) }
