package ssair

var SignatureOf = signatureOf
