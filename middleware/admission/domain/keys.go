package domain

// KeyScheme deriva as duas chaves de contagem de uma requisição: uma por
// cliente e uma global, ambas amarradas ao bucket corrente.
//
// Os sufixos/prefixos são distintos por construção, então chaves de escopos
// diferentes (ou de buckets diferentes) nunca colidem.
type KeyScheme struct {
	// Prefix é o namespace no store. Vazio usa o padrão.
	Prefix string
}

const defaultKeyPrefix = "codalyzer:rl"

// ClientKey retorna a chave do contador por cliente dentro do bucket.
func (s KeyScheme) ClientKey(clientID, bucketID string) string {
	return s.prefix() + ":day:" + bucketID + ":ip:" + clientID
}

// GlobalKey retorna a chave do contador global dentro do bucket.
func (s KeyScheme) GlobalKey(bucketID string) string {
	return s.prefix() + ":global:day:" + bucketID
}

func (s KeyScheme) prefix() string {
	if s.Prefix == "" {
		return defaultKeyPrefix
	}
	return s.Prefix
}
