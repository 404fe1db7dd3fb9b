// Package domain define contratos e tipos de domínio para a admissão de anúncios de troca.
//
// Este pacote não depende de net/http nem de drivers (Redis, Kafka).
// Tudo que é estado compartilhado entre requisições (contadores e o log de
// submissões) aparece aqui apenas como interface; as implementações ficam em infra.
package domain
