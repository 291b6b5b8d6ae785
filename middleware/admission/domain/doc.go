// Package domain define contratos e tipos de domínio para controle de admissão:
// janela fixa, cooldown punitivo e throttling graduado.
//
// Este pacote não depende de net/http nem de Redis.
// As funções de decisão (derivação de chave, cálculo de atraso, aritmética de
// expiração) são puras, para que possam ser testadas sem um store real.
package domain
