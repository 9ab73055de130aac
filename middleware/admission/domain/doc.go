// Package domain define contratos e tipos de domínio do controle de admissão.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar as regras de
// admissão (veredito, geo, contadores) de detalhes de infraestrutura.
package domain
