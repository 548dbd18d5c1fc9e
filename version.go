package colship

// Version is the colship release version.
const Version = "0.1.0"
