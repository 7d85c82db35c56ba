FROM golang:1.24-alpine AS builder

# marketd | indexer | fulfillment-bridge
ARG SERVICE=marketd

WORKDIR /src

COPY go.mod go.sum* ./
RUN go mod download

COPY cmd ./cmd
COPY internal ./internal
COPY migrations ./migrations

RUN CGO_ENABLED=0 GOOS=linux go build -trimpath -ldflags="-s -w" -o /out/service ./cmd/${SERVICE}

FROM alpine:3.19

RUN apk add --no-cache ca-certificates tzdata \
    && adduser -D -H -u 10001 market \
    && mkdir -p /keystore && chown market /keystore

WORKDIR /app
COPY --from=builder /out/service ./service

# migrations are embedded in the binary; only the wallet keystore is mounted
VOLUME ["/keystore"]
ENV KEYSTORE_DIR=/keystore

USER market

# 3000 marketd API, 3002 indexer metrics
EXPOSE 3000 3002

CMD ["./service"]
