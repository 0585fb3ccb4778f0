package ledger

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
    transaction_hash   VARCHAR PRIMARY KEY,
    from_address       VARCHAR NOT NULL,
    to_address         VARCHAR NOT NULL,
    value              VARCHAR NOT NULL,
    estimated_gas_cost VARCHAR NOT NULL,
    sender_token_id    VARCHAR,
    confirmed          TIMESTAMP WITHOUT TIME ZONE,
    created            TIMESTAMP WITHOUT TIME ZONE DEFAULT (now() AT TIME ZONE 'utc')
);

CREATE INDEX IF NOT EXISTS idx_transactions_from_address
    ON transactions (from_address) WHERE confirmed IS NULL;
CREATE INDEX IF NOT EXISTS idx_transactions_to_address
    ON transactions (to_address) WHERE confirmed IS NULL;

CREATE TABLE IF NOT EXISTS notification_registrations (
    token_id    VARCHAR NOT NULL,
    eth_address VARCHAR NOT NULL,
    PRIMARY KEY (token_id, eth_address)
);

CREATE TABLE IF NOT EXISTS push_notification_registrations (
    service         VARCHAR NOT NULL,
    registration_id VARCHAR NOT NULL,
    token_id        VARCHAR NOT NULL,
    PRIMARY KEY (service, registration_id)
);
`
