// Package dadosapi é um serviço REST de CRUD sobre a coleção "dados" no
// Postgres, com aceleração cache-aside via Redis e credenciais gerenciadas
// pelo AWS Secrets Manager.
//
// Visão Geral:
// O serviço expõe o contrato /api/v1/dados (listagem paginada, leitura,
// criação, atualização parcial, remoção e estatísticas agregadas), sondas de
// saúde para orquestradores e uma superfície GraphQL opcional somente-leitura.
// O Postgres é sempre a fonte de verdade: o cache é consultivo e qualquer
// falha nele degrada para comportamento de miss, nunca para erro.
//
// Sub-Pacotes Principais:
//
// 1. pkg/config e pkg/envloader:
//   - Configuração 12-Factor com precedência ambiente > arquivo YAML > default.
//
// 2. pkg/secrets:
//   - Bundle único de credenciais no Secrets Manager, cacheado em memória,
//     com releitura disparada por eventos de rotação via SQS.
//
// 3. pkg/storage e pkg/cache:
//   - Pool Postgres com migrações embutidas (goose) e statements posicionais.
//   - Cache Redis com invalidação de listas por contador de geração.
//
// 4. pkg/dados:
//   - Domínio do CRUD: repositório, serviço cache-aside e handlers HTTP.
//
// 5. pkg/transport:
//   - Roteador mux com middlewares de observabilidade e segurança,
//     adaptador Lambda/API Gateway e listener da fila de rotação.
//
// O design favorece interfaces pequenas por dependência externa (Secrets
// Manager, SQS, cache, repositório) para garantir fácil mocking nos testes.
package dadosapi
