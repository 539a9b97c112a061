package internal

// Version is the driver version sent to the server during the handshake.
const Version = "0.3.0"
